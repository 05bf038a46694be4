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

// Package source discovers protocol documents and extracts their text.
//
// A Source lists the documents of one agency and yields each document's
// plain text on demand. Two sources are provided: DirectorySource walks a
// directory of PDF and text files, and SnapshotSource reads a JSON metadata
// snapshot whose text was extracted upstream. Text extraction may fail for a
// single document; callers skip that document and continue.
package source

import (
	"context"
	"errors"

	"github.com/poiesic/protoingest/core"
)

var (
	// ErrUnsupportedFormat indicates no extractor handles the file type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the document bytes could not be read as text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Source enumerates documents and provides their text.
type Source interface {
	// ListDocuments returns every document in a stable order.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// Text returns the plain text of doc. An empty string means the
	// document has no usable text.
	Text(ctx context.Context, doc *core.Document) (string, error)
}

// Extraction is the result of reading one document's bytes.
type Extraction struct {
	Text  string
	Pages int
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Extraction, error)
}
