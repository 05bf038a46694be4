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
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// MaxTitleLength bounds the stored protocol title.
const MaxTitleLength = 255

// ChunkKey derives the deterministic identity of a chunk from the agency,
// the document identifier and the chunk's ordinal within that document.
// Identical inputs always produce the same 32 character hex key, so a
// re-ingestion overwrites rather than duplicates. Each field is length
// prefixed, so separators inside names or paths cannot collide.
func ChunkKey(agency, documentID string, ordinal int) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	var buf []byte
	for _, field := range []string{agency, documentID, strconv.Itoa(ordinal)} {
		buf = binary.AppendUvarint(buf, uint64(len(field)))
		buf = append(buf, field...)
	}
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

// ProtocolType classifies the kind of source document a chunk came from.
type ProtocolType string

const (
	ProtocolTypeProtocol   ProtocolType = "Protocol"
	ProtocolTypePolicy     ProtocolType = "Policy"
	ProtocolTypeProcedure  ProtocolType = "Procedure"
	ProtocolTypeAssessment ProtocolType = "Assessment Tool"
	ProtocolTypeMemo       ProtocolType = "Memo"
	ProtocolTypeForm       ProtocolType = "Form"
)

// ProtocolTypes lists every valid ProtocolType.
var ProtocolTypes = []ProtocolType{
	ProtocolTypeProtocol,
	ProtocolTypePolicy,
	ProtocolTypeProcedure,
	ProtocolTypeAssessment,
	ProtocolTypeMemo,
	ProtocolTypeForm,
}

// Document is one source file as discovered by a document source.
// Documents are never mutated by the pipeline.
type Document struct {
	ID           string // Stable name or path, used for chunk identity
	Name         string // Original file name
	Title        string // Display title (long name), may be empty
	ShortCode    string // Authoritative short identifier from source metadata
	CategoryPath string // Slash-delimited hierarchy, e.g. "Protocols/Cardiac"
	Text         string // Pre-extracted text, if the source provides it
	Size         int64
	Pages        int
	SourceURL    string
	ContentHash  string
	Version      string // Source publication/set version
	UID          string
}

// Reference returns the best source reference for chunks of this document.
func (d *Document) Reference() string {
	if d.SourceURL != "" {
		return d.SourceURL
	}
	return d.Name
}

// Chunk is a bounded excerpt of a document's text together with the
// context needed to retrieve and cite it.
type Chunk struct {
	ID               string
	AgencyName       string
	JurisdictionCode string
	ProtocolTitle    string
	ProtocolNumber   string
	Section          string
	ProtocolType     ProtocolType
	Ordinal          int
	TotalChunks      int
	Content          string
	SourceReference  string
	Vector           []float32         // Populated by the embedding step
	Metadata         map[string]string // Page count, file size, source version, etc.
	InsertedAt       time.Time         // Set by the store
}

// EmbeddingText returns the text submitted to the embedding provider for
// this chunk, truncated to limit runes when limit is positive.
func (c *Chunk) EmbeddingText(limit int) string {
	text := c.ProtocolTitle + "\n\n" + c.Content
	if limit <= 0 {
		return text
	}
	return TruncateRunes(text, limit)
}

// TruncateRunes shortens s to at most n runes without splitting a rune.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
