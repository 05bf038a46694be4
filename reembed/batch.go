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

package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/ingestion"
	"github.com/poiesic/protoingest/storage"
)

// BatchProcessor embeds batches of stored chunks and writes them back.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	requestTimeout time.Duration
	inputLimit     int
	normalize      bool
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding request
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		requestTimeout: ingestion.DefaultRequestTimeout,
		inputLimit:     ingestion.DefaultInputLimit,
	}
}

// Process embeds the chunks and upserts them with their new vectors.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.EmbeddingText(bp.inputLimit)
	}

	var embeddings [][]float32
	err := ingestion.RetryWithBackoff(ctx, func() error {
		reqCtx, cancel := ingestion.RequestContext(ctx, bp.requestTimeout)
		defer cancel()

		var err error
		embeddings, err = bp.embedder.EmbedTexts(reqCtx, texts)
		if err != nil {
			return err
		}
		return ai.CheckCount(len(texts), len(embeddings))
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	for i := range chunks {
		if bp.normalize {
			chunks[i].Vector = NormalizeVector(embeddings[i])
		} else {
			chunks[i].Vector = embeddings[i]
		}
	}

	if err := bp.repo.UpsertChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	return nil
}
