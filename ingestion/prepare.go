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

package ingestion

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/poiesic/protoingest/categorize"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/naming"
	"github.com/poiesic/protoingest/source"
	"golang.org/x/sync/errgroup"
)

// Prepare lists, extracts and chunks the documents of src without touching
// the repository or the embedder. The returned chunks carry no vectors.
func (p *Pipeline) Prepare(ctx context.Context, src source.Source) ([]*core.Chunk, *Summary, error) {
	start := time.Now()
	summary := &Summary{Agency: p.profile.Name}
	chunks, err := p.prepare(ctx, src, summary, p.logger)
	summary.Elapsed = time.Since(start)
	if err != nil {
		summary.Cancelled = isCancellation(err)
		return nil, summary, err
	}
	return chunks, summary, nil
}

func (p *Pipeline) prepare(ctx context.Context, src source.Source, summary *Summary, logger *slog.Logger) ([]*core.Chunk, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}

	docs, err := src.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	summary.DocumentsSeen = len(docs)
	logger.Info("listed documents", "count", len(docs))

	texts, failures, err := p.extractAll(ctx, src, docs)
	if err != nil {
		return nil, err
	}

	var chunks []*core.Chunk
	for i, doc := range docs {
		if failures[i] != nil {
			logger.Warn("skipping document, text extraction failed", "document", doc.ID, "err", failures[i])
			summary.skip(doc.ID, failures[i].Error())
			continue
		}
		if n := visibleLength(texts[i]); n < p.minTextLength {
			logger.Debug("skipping document without usable text", "document", doc.ID, "characters", n)
			summary.skip(doc.ID, "insufficient text: "+strconv.Itoa(n)+" characters")
			continue
		}

		docChunks := p.chunkDocument(doc, texts[i])
		if len(docChunks) == 0 {
			summary.skip(doc.ID, "no chunks produced")
			continue
		}
		summary.DocumentsProcessed++
		chunks = append(chunks, docChunks...)
	}
	summary.ChunksCreated = len(chunks)

	logger.Info("prepared chunks",
		"chunks", len(chunks),
		"processed", summary.DocumentsProcessed,
		"skipped", summary.DocumentsSkipped)
	return chunks, nil
}

// extractAll fetches document text with bounded parallelism. Per-document
// failures are returned in failures; err is set only on cancellation.
func (p *Pipeline) extractAll(ctx context.Context, src source.Source, docs []*core.Document) (texts []string, failures []error, err error) {
	texts = make([]string, len(docs))
	failures = make([]error, len(docs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.extractWorkers)

	for i, doc := range docs {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := src.Text(gctx, doc)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				return nil
			}
			texts[i] = text
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return texts, failures, nil
}

// chunkDocument turns one document into ordered chunks.
func (p *Pipeline) chunkDocument(doc *core.Document, text string) []*core.Chunk {
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return nil
	}

	name := cmp.Or(doc.Name, doc.Title, doc.ID)
	ident := naming.Parse(name, doc.ShortCode)
	if title := strings.TrimSpace(doc.Title); title != "" {
		ident.Title = title
	}

	title := ident.Title
	if p.profile.NumberedTitles {
		title = ident.Display()
	}
	title = core.TruncateRunes(title, core.MaxTitleLength)

	section := p.categorizer.Categorize(categorize.Input{
		Title:   ident.Title,
		Path:    doc.CategoryPath,
		Content: text,
		Number:  ident.Number,
	})
	protocolType := categorize.ProtocolType(p.profile.TypeRule, ident.Number, doc.CategoryPath, name)
	metadata := p.documentMetadata(doc)

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			ID:               core.ChunkKey(p.profile.Name, doc.ID, i),
			AgencyName:       p.profile.Name,
			JurisdictionCode: p.profile.Jurisdiction,
			ProtocolTitle:    title,
			ProtocolNumber:   ident.Number,
			Section:          section,
			ProtocolType:     protocolType,
			Ordinal:          i,
			TotalChunks:      len(pieces),
			Content:          piece,
			SourceReference:  doc.Reference(),
			Metadata:         maps.Clone(metadata),
		}
	}
	return chunks
}

func (p *Pipeline) documentMetadata(doc *core.Document) map[string]string {
	md := p.profile.Metadata()
	md["document_id"] = doc.ID
	if doc.Pages > 0 {
		md["pages"] = strconv.Itoa(doc.Pages)
	}
	if doc.Size > 0 {
		md["file_size"] = strconv.FormatInt(doc.Size, 10)
	}
	if doc.Version != "" {
		md["source_version"] = doc.Version
	}
	if doc.ContentHash != "" {
		md["content_hash"] = doc.ContentHash
	}
	if doc.UID != "" {
		md["uid"] = doc.UID
	}
	return md
}

// visibleLength counts non-whitespace runes.
func visibleLength(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
