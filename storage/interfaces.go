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

package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/protoingest/core"
)

// ChunkRepository persists embedded protocol chunks, partitioned by agency.
// Implementations must be safe for concurrent use.
type ChunkRepository interface {
	// DeleteAgencyChunks removes every stored chunk for agency. When
	// jurisdiction is non-empty only chunks with that jurisdiction code are
	// removed. Chunks of other agencies are never touched.
	// Returns the number of chunks removed when the backend can report it.
	DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error)

	// UpsertChunks inserts or replaces chunks by ID. Every chunk must pass
	// core.ValidateChunk and carry an embedding vector. Sets InsertedAt.
	// Either all chunks in the call are written or none are.
	UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id string) (*core.Chunk, error)

	// ListAgencyChunks returns every chunk stored for agency, ordered by
	// protocol number, title and ordinal.
	ListAgencyChunks(ctx context.Context, agency string) ([]*core.Chunk, error)

	// CountAgencyChunks returns the number of chunks stored for agency.
	CountAgencyChunks(ctx context.Context, agency string) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// ValidateForUpsert checks a chunk before it is written.
func ValidateForUpsert(chunk *core.Chunk) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return err
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s", ErrMissingEmbedding, chunk.ID)
	}
	return nil
}

// SortChunks orders chunks by protocol number, title and ordinal.
func SortChunks(chunks []*core.Chunk) {
	slices.SortFunc(chunks, func(a, b *core.Chunk) int {
		return cmp.Or(
			cmp.Compare(a.ProtocolNumber, b.ProtocolNumber),
			cmp.Compare(a.ProtocolTitle, b.ProtocolTitle),
			cmp.Compare(a.Ordinal, b.Ordinal),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
