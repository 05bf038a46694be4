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

// Package storagetest holds behavior tests shared by every
// storage.ChunkRepository implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewChunk builds a valid, embedded chunk for tests.
func NewChunk(agency, jurisdiction, document string, ordinal, total int) *core.Chunk {
	return &core.Chunk{
		ID:               core.ChunkKey(agency, document, ordinal),
		AgencyName:       agency,
		JurisdictionCode: jurisdiction,
		ProtocolTitle:    document + " Title",
		ProtocolNumber:   document,
		Section:          "General",
		ProtocolType:     core.ProtocolTypePolicy,
		Ordinal:          ordinal,
		TotalChunks:      total,
		Content:          fmt.Sprintf("%s chunk %d of %d", document, ordinal, total),
		SourceReference:  document + ".pdf",
		Vector:           []float32{float32(ordinal), 0.5, -0.25},
		Metadata:         map[string]string{"pages": "3"},
	}
}

// NewDocumentChunks builds all chunks of one document.
func NewDocumentChunks(agency, jurisdiction, document string, total int) []*core.Chunk {
	chunks := make([]*core.Chunk, total)
	for i := range chunks {
		chunks[i] = NewChunk(agency, jurisdiction, document, i, total)
	}
	return chunks
}

// RunChunkRepositoryTests exercises repository behavior. newRepo must return
// an empty repository; it is called once per subtest.
func RunChunkRepositoryTests(t *testing.T, newRepo func(t *testing.T) storage.ChunkRepository) {
	ctx := context.Background()

	t.Run("upsert and get", func(t *testing.T) {
		repo := newRepo(t)
		chunk := NewChunk("Agency A", "CA", "700", 0, 1)

		require.NoError(t, repo.UpsertChunks(ctx, chunk))
		assert.False(t, chunk.InsertedAt.IsZero())

		got, err := repo.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, chunk.ID, got.ID)
		assert.Equal(t, chunk.Content, got.Content)
		assert.Equal(t, chunk.ProtocolType, got.ProtocolType)
		assert.Equal(t, chunk.Vector, got.Vector)
		assert.Equal(t, chunk.Metadata, got.Metadata)
		assert.Equal(t, chunk.Ordinal, got.Ordinal)
		assert.Equal(t, chunk.TotalChunks, got.TotalChunks)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetChunk(ctx, "does-not-exist")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		repo := newRepo(t)
		chunk := NewChunk("Agency A", "CA", "700", 0, 1)
		require.NoError(t, repo.UpsertChunks(ctx, chunk))

		updated := NewChunk("Agency A", "CA", "700", 0, 1)
		updated.Content = "Revised content"
		require.NoError(t, repo.UpsertChunks(ctx, updated))

		count, err := repo.CountAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := repo.GetChunk(ctx, chunk.ID)
		require.NoError(t, err)
		assert.Equal(t, "Revised content", got.Content)
	})

	t.Run("upsert rejects chunk without embedding", func(t *testing.T) {
		repo := newRepo(t)
		good := NewChunk("Agency A", "CA", "700", 0, 2)
		bad := NewChunk("Agency A", "CA", "700", 1, 2)
		bad.Vector = nil

		err := repo.UpsertChunks(ctx, good, bad)
		assert.ErrorIs(t, err, storage.ErrMissingEmbedding)

		count, err := repo.CountAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("upsert rejects invalid chunk", func(t *testing.T) {
		repo := newRepo(t)
		chunk := NewChunk("Agency A", "CA", "700", 3, 2)
		assert.ErrorIs(t, repo.UpsertChunks(ctx, chunk), core.ErrInvalidOrdinal)
	})

	t.Run("list is ordered", func(t *testing.T) {
		repo := newRepo(t)
		chunks := append(NewDocumentChunks("Agency A", "CA", "710", 3), NewDocumentChunks("Agency A", "CA", "106", 2)...)
		require.NoError(t, repo.UpsertChunks(ctx, chunks...))

		got, err := repo.ListAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		require.Len(t, got, 5)

		var order []string
		for _, c := range got {
			order = append(order, fmt.Sprintf("%s/%d", c.ProtocolNumber, c.Ordinal))
		}
		assert.Equal(t, []string{"106/0", "106/1", "710/0", "710/1", "710/2"}, order)
	})

	t.Run("delete is scoped to agency", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.UpsertChunks(ctx, NewDocumentChunks("Agency A", "CA", "700", 3)...))
		require.NoError(t, repo.UpsertChunks(ctx, NewDocumentChunks("Agency AB", "CA", "700", 2)...))

		_, err := repo.DeleteAgencyChunks(ctx, "Agency A", "CA")
		require.NoError(t, err)

		count, err := repo.CountAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		count, err = repo.CountAgencyChunks(ctx, "Agency AB")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("delete respects jurisdiction", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.UpsertChunks(ctx, NewDocumentChunks("Agency A", "CA", "700", 2)...))
		require.NoError(t, repo.UpsertChunks(ctx, NewDocumentChunks("Agency A", "NV", "800", 1)...))

		_, err := repo.DeleteAgencyChunks(ctx, "Agency A", "CA")
		require.NoError(t, err)

		count, err := repo.CountAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = repo.DeleteAgencyChunks(ctx, "Agency A", "")
		require.NoError(t, err)

		count, err = repo.CountAgencyChunks(ctx, "Agency A")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("delete then get", func(t *testing.T) {
		repo := newRepo(t)
		chunk := NewChunk("Agency A", "CA", "700", 0, 1)
		require.NoError(t, repo.UpsertChunks(ctx, chunk))

		_, err := repo.DeleteAgencyChunks(ctx, "Agency A", "")
		require.NoError(t, err)

		_, err = repo.GetChunk(ctx, chunk.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete requires agency", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.DeleteAgencyChunks(ctx, "", "CA")
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := newRepo(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := repo.UpsertChunks(cancelled, NewChunk("Agency A", "CA", "700", 0, 1))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
