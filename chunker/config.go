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

package chunker

import (
	"fmt"
	"strings"
)

// Normalization selects how whitespace is cleaned before splitting.
type Normalization int

const (
	// NormalizeParagraphs keeps paragraph breaks and collapses 3+ newlines to 2.
	NormalizeParagraphs Normalization = iota
	// NormalizeCollapse squashes all whitespace runs to one space.
	NormalizeCollapse
)

// String returns the configuration name of the policy.
func (n Normalization) String() string {
	switch n {
	case NormalizeParagraphs:
		return "paragraphs"
	case NormalizeCollapse:
		return "collapse"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization maps a configuration name to a Normalization.
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "paragraphs":
		return NormalizeParagraphs, nil
	case "collapse":
		return NormalizeCollapse, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q", name)
	}
}

// Config controls chunk sizing.
type Config struct {
	// Size is the target chunk length in bytes.
	Size int

	// Overlap is the number of bytes shared by consecutive chunks.
	// Must be strictly less than Size.
	Overlap int

	// MinLength is the shortest piece worth keeping. Shorter non-final
	// pieces are dropped as noise, and a final piece that would fall
	// under it is merged into the preceding chunk.
	//
	// A dropped piece is not covered by any chunk. This happens when a
	// break point lands early in a window, which is only likely when Size
	// is small relative to MinLength plus Overlap. With Size well above
	// both (the built-in profiles use at least 1200 against 50), windows
	// that trim below MinLength are whitespace runs.
	MinLength int

	// Normalization selects the whitespace policy.
	Normalization Normalization
}

// DefaultConfig returns the configuration used when an agency profile does
// not override chunk sizing.
func DefaultConfig() Config {
	return Config{
		Size:          1200,
		Overlap:       150,
		MinLength:     50,
		Normalization: NormalizeParagraphs,
	}
}

// Validate checks the configuration for values that would prevent the
// splitter from terminating.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.Overlap, c.Size)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinLength, c.MinLength)
	}
	return nil
}
