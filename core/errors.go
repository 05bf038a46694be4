// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty or whitespace.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyAgency indicates the AgencyName field is empty.
	ErrEmptyAgency = errors.New("agency name cannot be empty")

	// ErrEmptyChunkID indicates the chunk identity key is missing.
	ErrEmptyChunkID = errors.New("chunk id cannot be empty")

	// ErrInvalidOrdinal indicates the ordinal is outside [0, TotalChunks).
	ErrInvalidOrdinal = errors.New("ordinal out of range")

	// ErrTitleTooLong indicates the protocol title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("protocol title too long")

	// ErrInvalidProtocolType indicates an unknown ProtocolType value.
	ErrInvalidProtocolType = errors.New("invalid protocol type")
)
