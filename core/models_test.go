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
	"regexp"
	"testing"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestChunkKey(t *testing.T) {
	tests := []struct {
		name     string
		agency   string
		document string
		ordinal  int
	}{
		{name: "basic", agency: "Santa Clara County EMS", document: "700-A01", ordinal: 0},
		{name: "later ordinal", agency: "Santa Clara County EMS", document: "700-A01", ordinal: 7},
		{name: "empty document", agency: "Solano County EMS", document: "", ordinal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1 := ChunkKey(tt.agency, tt.document, tt.ordinal)
			k2 := ChunkKey(tt.agency, tt.document, tt.ordinal)

			if k1 != k2 {
				t.Errorf("ChunkKey() not deterministic: %s vs %s", k1, k2)
			}
			if !hexKey.MatchString(k1) {
				t.Errorf("ChunkKey() = %q, want 32 hex characters", k1)
			}
		})
	}
}

func TestChunkKey_Different(t *testing.T) {
	base := ChunkKey("Agency", "Doc", 0)

	for name, other := range map[string]string{
		"agency":  ChunkKey("Other Agency", "Doc", 0),
		"doc":     ChunkKey("Agency", "Other Doc", 0),
		"ordinal": ChunkKey("Agency", "Doc", 1),
	} {
		if other == base {
			t.Errorf("ChunkKey() collided when %s changed", name)
		}
	}
}

func TestChunkKey_FieldBoundaries(t *testing.T) {
	tests := []struct {
		name          string
		agencyA, docA string
		agencyB, docB string
	}{
		{name: "colon moved across fields", agencyA: "A:B", docA: "doc", agencyB: "A", docB: "B:doc"},
		{name: "slash moved across fields", agencyA: "Agency/x", docA: "y.pdf", agencyB: "Agency", docB: "x/y.pdf"},
		{name: "empty agency", agencyA: "", docA: "A:doc", agencyB: "A", docB: "doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ChunkKey(tt.agencyA, tt.docA, 0) == ChunkKey(tt.agencyB, tt.docB, 0) {
				t.Errorf("ChunkKey(%q, %q) collided with ChunkKey(%q, %q)", tt.agencyA, tt.docA, tt.agencyB, tt.docB)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter than limit", in: "abc", n: 5, want: "abc"},
		{name: "exact limit", in: "abc", n: 3, want: "abc"},
		{name: "ascii cut", in: "abcdef", n: 4, want: "abcd"},
		{name: "multibyte cut", in: "ñañaña", n: 3, want: "ñañ"},
		{name: "zero limit", in: "abc", n: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.in, tt.n); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestChunk_EmbeddingText(t *testing.T) {
	c := Chunk{ProtocolTitle: "Cardiac Arrest", Content: "Begin CPR."}

	if got := c.EmbeddingText(0); got != "Cardiac Arrest\n\nBegin CPR." {
		t.Errorf("EmbeddingText(0) = %q", got)
	}
	if got := c.EmbeddingText(7); got != "Cardiac" {
		t.Errorf("EmbeddingText(7) = %q", got)
	}
}

func TestDocument_Reference(t *testing.T) {
	d := Document{Name: "700-A01.pdf"}
	if d.Reference() != "700-A01.pdf" {
		t.Errorf("Reference() = %q, want file name", d.Reference())
	}
	d.SourceURL = "https://example.org/700-A01.pdf"
	if d.Reference() != d.SourceURL {
		t.Errorf("Reference() = %q, want source URL", d.Reference())
	}
}
