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
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/ai/mock"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
	"github.com/poiesic/protoingest/storage/badger"
	"github.com/poiesic/protoingest/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAgency       = "Santa Clara County EMS Agency"
	testJurisdiction = "CA"
)

func setupRepo(t *testing.T, chunks ...*core.Chunk) storage.ChunkRepository {
	t.Helper()

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if len(chunks) > 0 {
		require.NoError(t, repo.UpsertChunks(context.Background(), chunks...))
	}
	return repo
}

func TestChunkIterator_Batches(t *testing.T) {
	repo := setupRepo(t, storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 5)...)

	var sizes []int
	err := NewChunkIterator(repo, testAgency, 2).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		sizes = append(sizes, len(chunks))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestChunkIterator_OtherAgencyIgnored(t *testing.T) {
	repo := setupRepo(t, storagetest.NewDocumentChunks("Solano County EMS Agency", testJurisdiction, "C-3", 3)...)

	called := false
	err := NewChunkIterator(repo, testAgency, 10).ForEach(context.Background(), func([]*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repo := setupRepo(t, storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 4)...)
	boom := errors.New("boom")

	calls := 0
	err := NewChunkIterator(repo, testAgency, 1).ForEach(context.Background(), func([]*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	it := NewChunkIterator(nil, testAgency, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}

func TestBatchProcessor_ReplacesVectors(t *testing.T) {
	chunks := storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 3)
	repo := setupRepo(t, chunks...)
	embedder := mock.NewMockEmbedder()

	bp := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, bp.Process(context.Background(), chunks))
	assert.Equal(t, 1, embedder.CallCount())

	for _, chunk := range chunks {
		stored, err := repo.GetChunk(context.Background(), chunk.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Vector, mock.DefaultDimension)
		assert.Equal(t, chunk.Content, stored.Content)
		assert.Equal(t, mock.GenerateVector(chunk.EmbeddingText(bp.inputLimit), mock.DefaultDimension), stored.Vector)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	bp := NewBatchProcessor(setupRepo(t), embedder, 3, time.Millisecond)

	require.NoError(t, bp.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_RetriesTransientFailure(t *testing.T) {
	chunks := storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 2)
	repo := setupRepo(t, chunks...)

	var attempts atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("temporary failure")
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 2, 3}
		}
		return vectors, nil
	}

	bp := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, bp.Process(context.Background(), chunks))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestBatchProcessor_CountMismatchFails(t *testing.T) {
	chunks := storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 2)
	original := append([]float32(nil), chunks[0].Vector...)
	repo := setupRepo(t, chunks...)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2, 3}}, nil
	}

	bp := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	err := bp.Process(context.Background(), chunks)
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrCountMismatch)
	assert.Equal(t, 1, embedder.CallCount())

	stored, err := repo.GetChunk(context.Background(), chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, original, stored.Vector)
}

func TestBatchProcessor_RequestTimeout(t *testing.T) {
	chunks := storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 1)
	repo := setupRepo(t, chunks...)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	config.RequestTimeout = 10 * time.Millisecond

	var out bytes.Buffer
	_, err := NewReembedder(repo, embedder, config, &out).Run(context.Background(), testAgency)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestBatchProcessor_Normalize(t *testing.T) {
	chunks := storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 1)
	repo := setupRepo(t, chunks...)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{3, 4}}, nil
	}

	bp := NewBatchProcessor(repo, embedder, 1, time.Millisecond)
	bp.normalize = true
	require.NoError(t, bp.Process(context.Background(), chunks))

	stored, err := repo.GetChunk(context.Background(), chunks[0].ID)
	require.NoError(t, err)
	require.Len(t, stored.Vector, 2)
	assert.InDelta(t, 0.6, stored.Vector[0], 1e-6)
	assert.InDelta(t, 0.8, stored.Vector[1], 1e-6)
}

func TestReembedder_Run(t *testing.T) {
	chunks := append(
		storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 3),
		storagetest.NewDocumentChunks(testAgency, testJurisdiction, "106", 2)...,
	)
	other := storagetest.NewDocumentChunks("Solano County EMS Agency", testJurisdiction, "C-3", 2)
	repo := setupRepo(t, append(chunks, other...)...)
	embedder := mock.NewMockEmbedder()

	config := DefaultConfig()
	config.BatchSize = 2
	config.RetryDelay = time.Millisecond

	var out bytes.Buffer
	updated, err := NewReembedder(repo, embedder, config, &out).Run(context.Background(), testAgency)
	require.NoError(t, err)
	assert.Equal(t, 5, updated)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Contains(t, out.String(), "Reembedding 5 chunks")
	assert.Contains(t, out.String(), "Updated 5 chunks")

	for _, chunk := range chunks {
		stored, err := repo.GetChunk(context.Background(), chunk.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Vector, mock.DefaultDimension)
	}

	untouched, err := repo.GetChunk(context.Background(), other[0].ID)
	require.NoError(t, err)
	assert.Equal(t, other[0].Vector, untouched.Vector)

	embedder.Reset()
	updated, err = NewReembedder(repo, embedder, config, &out).Run(context.Background(), testAgency)
	require.NoError(t, err)
	assert.Equal(t, 5, updated)
	assert.Equal(t, 3, embedder.CallCount())

	count, err := repo.CountAgencyChunks(context.Background(), testAgency)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestReembedder_NoChunks(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	var out bytes.Buffer
	updated, err := NewReembedder(setupRepo(t), embedder, nil, &out).Run(context.Background(), testAgency)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, out.String(), "No chunks stored")
}

func TestReembedder_StopsOnFailedBatch(t *testing.T) {
	repo := setupRepo(t, storagetest.NewDocumentChunks(testAgency, testJurisdiction, "700", 4)...)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	config := DefaultConfig()
	config.BatchSize = 2
	config.MaxRetries = 1

	var out bytes.Buffer
	updated, err := NewReembedder(repo, embedder, config, &out).Run(context.Background(), testAgency)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Zero(t, updated)
	assert.Equal(t, 1, embedder.CallCount())
}
