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
	"testing"

	"github.com/poiesic/protoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:          core.ChunkKey("Agency", "Doc", 0),
		AgencyName:  "Agency",
		Content:     "Content",
		TotalChunks: 1,
		Vector:      []float32{0.5, 0.25},
		Metadata:    map[string]string{"pages": "2"},
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	_, err := UnmarshalChunk([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalVector(t *testing.T) {
	vector := []float32{0, 1, -1.5, 3.25e-5}

	data := MarshalVector(vector)
	assert.Len(t, data, 16)

	decoded, err := UnmarshalVector(data)
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)

	_, err = UnmarshalVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestValidateForUpsert(t *testing.T) {
	chunk := &core.Chunk{
		ID:          "id",
		AgencyName:  "Agency",
		Content:     "Content",
		TotalChunks: 1,
	}
	assert.ErrorIs(t, ValidateForUpsert(chunk), ErrMissingEmbedding)

	chunk.Vector = []float32{1}
	assert.NoError(t, ValidateForUpsert(chunk))

	chunk.Content = ""
	assert.ErrorIs(t, ValidateForUpsert(chunk), core.ErrEmptyContent)
}

func TestSortChunks(t *testing.T) {
	chunks := []*core.Chunk{
		{ID: "c", ProtocolNumber: "700", Ordinal: 1},
		{ID: "a", ProtocolNumber: "106", Ordinal: 0},
		{ID: "b", ProtocolNumber: "700", Ordinal: 0},
	}
	SortChunks(chunks)

	ids := []string{chunks[0].ID, chunks[1].ID, chunks[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
