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
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	anyWhitespace  = regexp.MustCompile(`\s+`)
)

// sentenceTerminators are tried in order; the first one found past the
// middle of the window wins.
var sentenceTerminators = []string{". ", ".\n", "? ", "! "}

// Segment is one chunk together with its window in the normalized text.
type Segment struct {
	Start   int // Window start offset (inclusive)
	End     int // Window end offset (exclusive)
	Content string
}

// Chunker splits text according to a validated Config.
type Chunker struct {
	cfg Config
}

// New returns a Chunker for cfg, or a configuration error.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Normalize applies the configured whitespace policy to text.
func (c *Chunker) Normalize(text string) string {
	return Normalize(text, c.cfg.Normalization)
}

// Normalize applies policy to text.
func Normalize(text string, policy Normalization) string {
	if policy == NormalizeCollapse {
		return strings.TrimSpace(anyWhitespace.ReplaceAllString(text, " "))
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split normalizes text and returns its chunks in order.
func (c *Chunker) Split(text string) []string {
	segments := c.Segments(text)
	chunks := make([]string, len(segments))
	for i, s := range segments {
		chunks[i] = s.Content
	}
	return chunks
}

// Segments normalizes text and returns its chunks with their window
// offsets into the normalized text.
func (c *Chunker) Segments(text string) []Segment {
	text = c.Normalize(text)
	n := len(text)
	if n == 0 {
		return nil
	}
	if n <= c.cfg.Size {
		return []Segment{{Start: 0, End: n, Content: text}}
	}

	var segments []Segment
	start := 0
	for start < n {
		end := start + c.cfg.Size
		if end >= n || n-end+c.cfg.Overlap < c.cfg.MinLength {
			end = n
		} else {
			end = runeBoundary(text, start+c.breakPoint(text[start:end]))
			if end <= start {
				end = start + 1
				for end < n && !utf8.RuneStart(text[end]) {
					end++
				}
			}
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" && (end == n || len(content) >= c.cfg.MinLength) {
			segments = append(segments, Segment{Start: start, End: end, Content: content})
		}

		if end == n {
			break
		}
		next := runeBoundary(text, end-c.cfg.Overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return segments
}

// breakPoint returns the length the window should be cut to.
func (c *Chunker) breakPoint(window string) int {
	half := c.cfg.Size / 2

	if idx := strings.LastIndex(window, "\n\n"); idx > half {
		return idx + 2
	}
	for _, term := range sentenceTerminators {
		if idx := strings.LastIndex(window, term); idx > half {
			return idx + len(term)
		}
	}
	if idx := strings.LastIndex(window, " "); idx > half {
		return idx + 1
	}
	return len(window)
}

// runeBoundary moves i back to the start of the rune containing it.
func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
