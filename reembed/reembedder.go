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
	"io"
	"time"

	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/ingestion"
	"github.com/poiesic/protoingest/storage"
)

// Config controls a reembedding run.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding request
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// RequestTimeout bounds each embedding request; zero disables it
	RequestTimeout time.Duration

	// InputLimit is the provider's per-text character limit
	InputLimit int

	// Normalize scales vectors to unit length before storing them
	Normalize bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      ingestion.DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     ingestion.DefaultMaxAttempts,
		RetryDelay:     ingestion.DefaultRetryDelay,
		RequestTimeout: ingestion.DefaultRequestTimeout,
		InputLimit:     ingestion.DefaultInputLimit,
	}
}

// Reembedder replaces the vectors of one agency's stored chunks.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
}

// NewReembedder creates a reembedder. Progress and the final report are
// written to progress.
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	processor := NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay)
	if config.InputLimit > 0 {
		processor.inputLimit = config.InputLimit
	}
	processor.normalize = config.Normalize
	processor.requestTimeout = config.RequestTimeout

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: processor,
	}
}

// Run reembeds every chunk stored for agency and returns how many were
// updated. The first failing batch stops the run; batches already written
// keep their new vectors.
func (r *Reembedder) Run(ctx context.Context, agency string) (int, error) {
	total, err := r.repo.CountAgencyChunks(ctx, agency)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks stored for %s\n", agency)
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d chunks for %s (batch size: %d)\n",
		total, agency, r.config.BatchSize)

	tracker := ingestion.NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = NewChunkIterator(r.repo, agency, r.config.BatchSize).ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(chunks)
		tracker.Increment(len(chunks))
		return nil
	})
	tracker.Finish()
	if err != nil {
		return processed, err
	}

	fmt.Fprintf(r.progress, "Reembedding complete. Updated %d chunks in %v\n",
		processed, tracker.Elapsed().Round(time.Millisecond))
	return processed, nil
}
