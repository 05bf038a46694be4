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

// Package agency describes how each EMS agency's documents are ingested.
//
// Agencies publish protocols with different naming conventions, section
// numbering and text quality. A Profile captures those differences as data
// so a single pipeline can ingest every agency.
package agency

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/protoingest/categorize"
	"github.com/poiesic/protoingest/chunker"
)

var (
	// ErrUnknownProfile is returned by Lookup for an unregistered key.
	ErrUnknownProfile = errors.New("unknown agency profile")

	// ErrInvalidProfile indicates a profile is missing required fields.
	ErrInvalidProfile = errors.New("invalid agency profile")
)

// Profile holds the agency-specific settings of an ingestion run.
type Profile struct {
	Key          string // Short lookup key, e.g. "santa-clara"
	Name         string // Agency name stored on every chunk
	Jurisdiction string // Jurisdiction code, e.g. "CA"
	ProtocolYear int    // Protocol set year recorded in chunk metadata; 0 to omit

	Chunking          chunker.Config
	Strategy          categorize.Strategy
	CategorizeContent bool // Include document text in keyword matching
	TypeRule          categorize.TypeRule

	// NumberedTitles stores titles as "<number> - <title>".
	NumberedTitles bool
}

// Validate checks that the profile can drive a run.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: agency name is required", ErrInvalidProfile)
	}
	if err := p.Chunking.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// Metadata returns the profile-level fields recorded on every chunk.
func (p Profile) Metadata() map[string]string {
	md := make(map[string]string)
	if p.ProtocolYear > 0 {
		md["protocol_year"] = strconv.Itoa(p.ProtocolYear)
	}
	return md
}

// Categorizer builds a categorizer configured for the profile.
func (p Profile) Categorizer() *categorize.Categorizer {
	return categorize.New(
		categorize.WithStrategy(p.Strategy),
		categorize.WithContent(p.CategorizeContent),
	)
}

var builtins = map[string]Profile{
	"santa-clara": {
		Key:          "santa-clara",
		Name:         "Santa Clara County EMS Agency",
		Jurisdiction: "CA",
		ProtocolYear: 2025,
		Chunking: chunker.Config{
			Size:          1200,
			Overlap:       150,
			MinLength:     50,
			Normalization: chunker.NormalizeParagraphs,
		},
		Strategy:          categorize.SectionFirst,
		CategorizeContent: true,
		TypeRule:          categorize.TypeBySection,
		NumberedTitles:    true,
	},
	"solano": {
		Key:          "solano",
		Name:         "Solano County EMS Agency",
		Jurisdiction: "CA",
		ProtocolYear: 2026,
		Chunking: chunker.Config{
			Size:          1500,
			Overlap:       200,
			MinLength:     50,
			Normalization: chunker.NormalizeCollapse,
		},
		Strategy: categorize.KeywordsFirst,
		TypeRule: categorize.TypeByPath,
	},
	"generic": {
		Key:               "generic",
		Name:              "EMS Agency",
		Chunking:          chunker.DefaultConfig(),
		Strategy:          categorize.KeywordsFirst,
		CategorizeContent: true,
		TypeRule:          categorize.TypeByPath,
	},
}

// Lookup returns a copy of the built-in profile registered under key.
func Lookup(key string) (Profile, error) {
	p, ok := builtins[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, key)
	}
	return p, nil
}

// Keys lists the built-in profile keys in sorted order.
func Keys() []string {
	return slices.Sorted(maps.Keys(builtins))
}
