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

package main

import (
	"context"
	"errors"

	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
)

// The chunk and count commands never embed, and chunk never stores. These
// stand in for the components they do not need.

var errNotAvailable = errors.New("not available in this command")

type nopEmbedder struct{}

func (nopEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, errNotAvailable
}

func (nopEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errNotAvailable
}

type nopProvider struct{}

func (nopProvider) Embedder() ai.Embedder { return nopEmbedder{} }
func (nopProvider) Close() error          { return nil }

type nopRepository struct{}

var _ storage.ChunkRepository = nopRepository{}

func (nopRepository) DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error) {
	return 0, errNotAvailable
}

func (nopRepository) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return errNotAvailable
}

func (nopRepository) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	return nil, storage.ErrNotFound
}

func (nopRepository) ListAgencyChunks(ctx context.Context, agency string) ([]*core.Chunk, error) {
	return nil, nil
}

func (nopRepository) CountAgencyChunks(ctx context.Context, agency string) (int, error) {
	return 0, nil
}

func (nopRepository) Close() error { return nil }
