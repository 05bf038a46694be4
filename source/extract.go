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
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor extracts text from PDF files. Page counts come from pdfcpu,
// text from the ledongthuc/pdf content stream reader.
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor creates a PDF extractor with relaxed validation, which
// tolerates the slightly malformed files common on agency websites.
func NewPDFExtractor() *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Extract returns the text and page count of a PDF.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	pages, err := e.PageCount(data)
	if err != nil {
		return Extraction{}, err
	}

	text, err := plainText(data)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{Text: text, Pages: pages}, nil
}

// PageCount returns the number of pages in a PDF.
func (e *PDFExtractor) PageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: page count: %v", ErrExtractionFailed, r)
		}
	}()
	pages, err = api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return 0, fmt.Errorf("%w: page count: %w", ErrExtractionFailed, err)
	}
	return pages, nil
}

// plainText reads the text layer of a PDF. The reader panics on some
// malformed content streams, so panics become extraction errors.
func plainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}

// PlainTextExtractor handles .txt and .md files.
type PlainTextExtractor struct{}

// Extract returns data as text. Invalid UTF-8 is an extraction error.
func (PlainTextExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	if !utf8.Valid(data) {
		return Extraction{}, fmt.Errorf("%w: invalid UTF-8", ErrExtractionFailed)
	}
	return Extraction{Text: string(data)}, nil
}
