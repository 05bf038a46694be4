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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/protoingest/agency"
	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/categorize"
	"github.com/poiesic/protoingest/chunker"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/source"
	"github.com/poiesic/protoingest/storage"
	"golang.org/x/time/rate"
)

// Defaults applied by NewPipeline.
const (
	DefaultBatchSize      = 20
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultMinTextLength  = 50
	DefaultInputLimit     = 16000
	DefaultExtractWorkers = 4
)

// Pipeline ingests the documents of one agency into a chunk repository.
type Pipeline struct {
	repository  storage.ChunkRepository
	embedder    ai.Embedder
	profile     agency.Profile
	chunker     *chunker.Chunker
	categorizer *categorize.Categorizer

	pool           *ants.Pool
	batchSize      int
	extractWorkers int
	limiter        *rate.Limiter
	requestTimeout time.Duration
	maxAttempts    int
	retryDelay     time.Duration
	minTextLength  int
	inputLimit     int
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many batches are embedded and stored concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of chunks per embedding request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithExtractWorkers sets how many documents have their text extracted in
// parallel.
func WithExtractWorkers(n int) Option {
	return func(p *Pipeline) error {
		p.extractWorkers = max(n, 1)
		return nil
	}
}

// WithRequestInterval sets the minimum spacing between embedding requests.
// Zero disables spacing; the pool size still caps concurrency.
func WithRequestInterval(interval time.Duration) Option {
	return func(p *Pipeline) error {
		if interval <= 0 {
			p.limiter = nil
			return nil
		}
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
		return nil
	}
}

// WithRequestTimeout bounds each embedding and store request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		p.requestTimeout = timeout
		return nil
	}
}

// WithRetry sets the embedding attempts per batch and the base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidMaxAttempts)
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithMinTextLength sets the number of non-whitespace characters a
// document needs to be chunked.
func WithMinTextLength(n int) Option {
	return func(p *Pipeline) error {
		p.minTextLength = max(n, 0)
		return nil
	}
}

// WithInputLimit sets the embedding provider's input limit in characters.
func WithInputLimit(limit int) Option {
	return func(p *Pipeline) error {
		if limit < 1 {
			return fmt.Errorf("%w: input limit %d", ErrInvalidConfig, limit)
		}
		p.inputLimit = limit
		return nil
	}
}

// WithProgress writes batch progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline for the agency described by profile.
func NewPipeline(
	repository storage.ChunkRepository,
	embedder ai.Embedder,
	profile agency.Profile,
	opts ...Option,
) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	chk, err := chunker.New(profile.Chunking)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository:     repository,
		embedder:       embedder,
		profile:        profile,
		chunker:        chk,
		categorizer:    profile.Categorizer(),
		pool:           pool,
		batchSize:      DefaultBatchSize,
		extractWorkers: DefaultExtractWorkers,
		requestTimeout: DefaultRequestTimeout,
		maxAttempts:    DefaultMaxAttempts,
		retryDelay:     DefaultRetryDelay,
		minTextLength:  DefaultMinTextLength,
		inputLimit:     DefaultInputLimit,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion", "agency", profile.Name)
	return p, nil
}

// Profile returns the agency profile the pipeline was built with.
func (p *Pipeline) Profile() agency.Profile {
	return p.profile
}

// Run performs a full-replace ingestion of src. Stored chunks for the
// agency are deleted once the new chunks are prepared and before any batch
// is written. A run that produces no chunks leaves the store untouched.
//
// Batch failures are recorded in the returned Summary. The error is
// non-nil only for a failed document listing, a failed delete, or
// cancellation; the Summary is valid in every case.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), Agency: p.profile.Name}
	logger := p.logger.With("run", summary.RunID)
	defer func() { summary.Elapsed = time.Since(start) }()

	chunks, err := p.prepare(ctx, src, summary, logger)
	if err != nil {
		summary.Cancelled = isCancellation(err)
		return summary, err
	}

	if len(chunks) == 0 {
		logger.Warn("no chunks produced, stored chunks left in place", "documents", summary.DocumentsSeen)
		return summary, nil
	}

	deleted, err := p.repository.DeleteAgencyChunks(ctx, p.profile.Name, p.profile.Jurisdiction)
	if err != nil {
		logger.Error("error deleting agency chunks", "err", err)
		return summary, fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	summary.DeletedChunks = deleted
	logger.Info("deleted existing chunks", "count", deleted)

	err = p.writeBatches(ctx, chunks, summary, logger)
	logger.Info("ingestion finished",
		"inserted", summary.ChunksInserted,
		"failed", summary.ChunksFailed,
		"skipped_documents", summary.DocumentsSkipped,
		"cancelled", summary.Cancelled)
	return summary, err
}

// writeBatches embeds and upserts chunks on the worker pool.
func (p *Pipeline) writeBatches(ctx context.Context, chunks []*core.Chunk, summary *Summary, logger *slog.Logger) error {
	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(chunks), p.batchSize)
		tracker.Start()
		defer tracker.Finish()
	}

	state := &runState{}
	var wg sync.WaitGroup

	for index, batch := 0, 0; index < len(chunks); index, batch = index+p.batchSize, batch+1 {
		if ctx.Err() != nil {
			logger.Warn("run cancelled between batches", "batch", batch)
			break
		}

		chunkBatch := chunks[index:min(index+p.batchSize, len(chunks))]
		batchNum := batch

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.processBatch(ctx, chunkBatch); err != nil {
				logger.Error("batch failed", "batch", batchNum, "chunks", len(chunkBatch), "err", err)
				state.batchFailed(batchNum, len(chunkBatch), err)
			} else {
				logger.Debug("batch stored", "batch", batchNum, "chunks", len(chunkBatch))
				state.succeeded(len(chunkBatch))
			}
			if tracker != nil {
				tracker.Increment(len(chunkBatch))
			}
		})
		if err != nil {
			wg.Done()
			state.batchFailed(batchNum, len(chunkBatch), err)
		}
	}

	wg.Wait()
	state.merge(summary)

	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		return err
	}
	return nil
}

// processBatch embeds one batch and upserts it. Any failure fails the
// whole batch.
func (p *Pipeline) processBatch(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.EmbeddingText(p.inputLimit)
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		reqCtx, cancel := p.requestContext(ctx)
		defer cancel()

		embedded, err := p.embedder.EmbedTexts(reqCtx, texts)
		if err != nil {
			return err
		}
		if err := ai.CheckCount(len(texts), len(embedded)); err != nil {
			return err
		}
		vectors = embedded
		return nil
	}, p.maxAttempts, p.retryDelay)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	for i := range batch {
		batch[i].Vector = vectors[i]
	}

	reqCtx, cancel := p.requestContext(ctx)
	defer cancel()
	if err := p.repository.UpsertChunks(reqCtx, batch...); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

func (p *Pipeline) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return RequestContext(ctx, p.requestTimeout)
}

// RequestContext derives the context for one embedding or store request.
// A timeout of zero or less leaves only ctx's own deadline.
func RequestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
