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

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/protoingest/core"
)

// snapshotFile is the JSON layout of a metadata snapshot.
type snapshotFile struct {
	Documents []snapshotDocument `json:"documents"`
}

type snapshotDocument struct {
	ID            flexID `json:"id"`
	UID           string `json:"uid"`
	LongName      string `json:"long_name"`
	ShortName     string `json:"short_name"`
	CategoryPath  string `json:"category_path"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	Pages         int    `json:"pages"`
	DownloadURL   string `json:"download_url"`
	ExtractedText string `json:"extracted_text"`
	MD5           string `json:"md5"`
	SHA256        string `json:"sha256"`
	UpdatedSet    string `json:"updated_set"`
}

// flexID accepts numeric or string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// SnapshotSource reads documents from a JSON snapshot. Text comes from the
// snapshot's extracted_text field; when that is empty and a file root is
// configured, the named file is extracted locally.
type SnapshotSource struct {
	docs     []*core.Document
	fileRoot string
	pdf      *PDFExtractor
	logger   *slog.Logger
}

// LoadSnapshot parses the snapshot at path. fileRoot may be empty.
func LoadSnapshot(path, fileRoot string) (*SnapshotSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(data, fileRoot)
}

// ParseSnapshot parses snapshot JSON. Documents are ordered by ID.
func ParseSnapshot(data []byte, fileRoot string) (*SnapshotSource, error) {
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	docs := make([]*core.Document, 0, len(snap.Documents))
	for i, d := range snap.Documents {
		id := string(d.ID)
		if id == "" {
			id = d.UID
		}
		if id == "" {
			id = strconv.Itoa(i)
		}
		hash := d.SHA256
		if hash == "" {
			hash = d.MD5
		}
		docs = append(docs, &core.Document{
			ID:           id,
			UID:          d.UID,
			Name:         d.FileName,
			Title:        d.LongName,
			ShortCode:    d.ShortName,
			CategoryPath: d.CategoryPath,
			Text:         d.ExtractedText,
			Size:         d.FileSize,
			Pages:        d.Pages,
			SourceURL:    d.DownloadURL,
			ContentHash:  hash,
			Version:      d.UpdatedSet,
		})
	}
	slices.SortStableFunc(docs, func(a, b *core.Document) int {
		return compareIDs(a.ID, b.ID)
	})

	return &SnapshotSource{
		docs:     docs,
		fileRoot: fileRoot,
		pdf:      NewPDFExtractor(),
		logger:   slog.Default().With("component", "snapshot-source"),
	}, nil
}

// compareIDs orders numeric IDs numerically and everything else lexically.
func compareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// ListDocuments returns the snapshot's documents.
func (s *SnapshotSource) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.docs), nil
}

// Text returns the snapshot text, falling back to extracting the local file.
func (s *SnapshotSource) Text(ctx context.Context, doc *core.Document) (string, error) {
	if doc.Text != "" || s.fileRoot == "" || doc.Name == "" {
		return doc.Text, nil
	}

	p := filepath.Join(s.fileRoot, filepath.Base(doc.Name))
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no local file for document", "document", doc.ID, "path", p)
			return "", nil
		}
		return "", err
	}

	var extractor Extractor = PlainTextExtractor{}
	if strings.EqualFold(filepath.Ext(p), ".pdf") {
		extractor = s.pdf
	}
	extraction, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", doc.ID, err)
	}
	return extraction.Text, nil
}
