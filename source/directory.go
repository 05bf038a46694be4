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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/protoingest/core"
)

// DirectorySource lists the documents below a root directory. The category
// path of a document is the root's name followed by its relative directory,
// e.g. "protocols/Cardiac".
type DirectorySource struct {
	root       string
	extractors map[string]Extractor
	version    string
	logger     *slog.Logger
}

// DirectoryOption configures a DirectorySource.
type DirectoryOption func(*DirectorySource)

// WithExtractor registers an extractor for a file extension such as ".pdf".
func WithExtractor(ext string, e Extractor) DirectoryOption {
	return func(s *DirectorySource) {
		s.extractors[strings.ToLower(ext)] = e
	}
}

// WithVersion records a source version on every document.
func WithVersion(version string) DirectoryOption {
	return func(s *DirectorySource) {
		s.version = version
	}
}

// NewDirectorySource creates a source rooted at root. PDF, .txt and .md
// files are recognized by default.
func NewDirectorySource(root string, opts ...DirectoryOption) (*DirectorySource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	s := &DirectorySource{
		root: root,
		extractors: map[string]Extractor{
			".pdf": NewPDFExtractor(),
			".txt": PlainTextExtractor{},
			".md":  PlainTextExtractor{},
		},
		logger: slog.Default().With("component", "directory-source", "root", root),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListDocuments walks the root and returns supported files sorted by path.
func (s *DirectorySource) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var docs []*core.Document
	rootName := filepath.Base(filepath.Clean(s.root))

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", p, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := s.extractors[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		docs = append(docs, s.describe(p, rel, rootName))
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b *core.Document) int {
		return strings.Compare(a.ID, b.ID)
	})
	s.logger.Debug("listed documents", "count", len(docs))
	return docs, nil
}

// describe never fails. A file that cannot be read is listed without size
// or hash so that Text reports the failure and the document is skipped.
func (s *DirectorySource) describe(p, rel, rootName string) *core.Document {
	category := rootName
	if dir := path.Dir(rel); dir != "." {
		category = rootName + "/" + dir
	}

	doc := &core.Document{
		ID:           rel,
		Name:         path.Base(rel),
		CategoryPath: category,
		Version:      s.version,
	}

	data, err := os.ReadFile(p)
	if err != nil {
		s.logger.Warn("could not read document", "document", rel, "err", err)
		return doc
	}
	sum := sha256.Sum256(data)
	doc.Size = int64(len(data))
	doc.ContentHash = hex.EncodeToString(sum[:])

	if pdfx, ok := s.extractors[".pdf"].(*PDFExtractor); ok && strings.EqualFold(path.Ext(rel), ".pdf") {
		pages, err := pdfx.PageCount(data)
		if err != nil {
			// Unreadable files are still listed; Text reports the failure.
			s.logger.Warn("could not count pages", "document", rel, "err", err)
		}
		doc.Pages = pages
	}
	return doc
}

// Text extracts the text of doc with the extractor for its extension.
func (s *DirectorySource) Text(ctx context.Context, doc *core.Document) (string, error) {
	if doc.Text != "" {
		return doc.Text, nil
	}
	extractor, ok := s.extractors[strings.ToLower(path.Ext(doc.ID))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, doc.ID)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(doc.ID)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	extraction, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", doc.ID, err)
	}
	return extraction.Text, nil
}
