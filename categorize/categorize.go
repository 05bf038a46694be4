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

package categorize

import (
	"fmt"
	"strings"
)

// Strategy selects the order in which rules are consulted.
type Strategy int

const (
	// KeywordsFirst checks keyword groups before the numeric section.
	KeywordsFirst Strategy = iota
	// SectionFirst uses the numeric section for non-clinical numbers and
	// consults keywords only for the clinical section 7.
	SectionFirst
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case KeywordsFirst:
		return "keywords"
	case SectionFirst:
		return "section"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "keywords":
		return KeywordsFirst, nil
	case "section":
		return SectionFirst, nil
	default:
		return 0, fmt.Errorf("unknown categorize strategy %q", name)
	}
}

// Input carries everything the categorizer may look at.
type Input struct {
	Title   string
	Path    string // Slash-delimited category path
	Content string
	Number  string // Protocol number; its leading digit selects a section
}

// Categorizer assigns section labels.
type Categorizer struct {
	strategy       Strategy
	includeContent bool
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithStrategy sets the rule order.
func WithStrategy(s Strategy) Option {
	return func(c *Categorizer) {
		c.strategy = s
	}
}

// WithContent makes document content part of the keyword search.
func WithContent(include bool) Option {
	return func(c *Categorizer) {
		c.includeContent = include
	}
}

// New creates a Categorizer. The default uses KeywordsFirst over title and
// path only.
func New(opts ...Option) *Categorizer {
	c := &Categorizer{strategy: KeywordsFirst}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize returns exactly one section label for in.
func (c *Categorizer) Categorize(in Input) string {
	haystack := in.Title + " " + in.Path
	if c.includeContent {
		haystack += " " + in.Content
	}
	lower := strings.ToLower(haystack)
	digit := sectionDigit(in.Number)

	if c.strategy == SectionFirst && digit != 0 && digit != '7' {
		if label, ok := sectionLabels[digit]; ok {
			return label
		}
	}

	if label := matchKeywords(lower); label != "" {
		return label
	}

	if label, ok := sectionLabels[digit]; ok {
		return label
	}

	if label, ok := canonical(pathSegment(in.Path)); ok {
		return label
	}

	return General
}

// pathSegment returns the trimmed second segment of a category path.
func pathSegment(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
