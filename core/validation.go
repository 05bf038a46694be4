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

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID and AgencyName must not be empty
//   - Content must contain non-whitespace characters
//   - 0 <= Ordinal < TotalChunks
//   - ProtocolTitle is at most MaxTitleLength runes
//   - ProtocolType, when set, must be a known type
//
// NOT validated (populated later):
//   - Vector (empty until the embedding step runs)
//   - InsertedAt (set by the store)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkID)
	}

	if chunk.AgencyName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyAgency)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Ordinal < 0 || chunk.Ordinal >= chunk.TotalChunks {
		return fmt.Errorf("%w: %w: %d of %d", ErrInvalidChunk, ErrInvalidOrdinal, chunk.Ordinal, chunk.TotalChunks)
	}

	if utf8.RuneCountInString(chunk.ProtocolTitle) > MaxTitleLength {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrTitleTooLong)
	}

	if chunk.ProtocolType != "" {
		if err := ValidateProtocolType(chunk.ProtocolType); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}
	}

	return nil
}

// ValidateProtocolType validates that a ProtocolType has a known value.
func ValidateProtocolType(pt ProtocolType) error {
	if !slices.Contains(ProtocolTypes, pt) {
		return fmt.Errorf("%w: value %q", ErrInvalidProtocolType, pt)
	}
	return nil
}
