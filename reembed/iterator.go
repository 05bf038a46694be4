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

	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
)

// DefaultBatchSize is the default number of chunks handed to the callback.
const DefaultBatchSize = 100

// ChunkIterator walks one agency's stored chunks in batches.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	agency    string
	batchSize int
}

// NewChunkIterator creates an iterator over agency's chunks.
func NewChunkIterator(repo storage.ChunkRepository, agency string, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		agency:    agency,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches in repository order. It stops
// at the first error from fn or when ctx is cancelled.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chunks, err := it.repo.ListAgencyChunks(ctx, it.agency)
	if err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += it.batchSize {
		if err := fn(chunks[i:min(i+it.batchSize, len(chunks))]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
