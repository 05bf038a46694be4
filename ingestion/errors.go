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

package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a chunk repository is not provided.
	ErrRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSourceRequired is returned when a run is started without a document source.
	ErrSourceRequired = errors.New("document source required")

	// ErrInvalidConfig is returned for settings that would prevent a run
	// from completing, such as an overlap not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid ingestion configuration")

	// ErrDeleteFailed is returned when stored chunks for the agency could
	// not be removed. No batches are written after this error.
	ErrDeleteFailed = errors.New("failed to delete existing agency chunks")

	// ErrInvalidMaxAttempts is returned when maxAttempts is less than 1.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
