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

package postgrest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/protoingest/core"
)

// row is the JSON shape of one table row.
type row struct {
	ChunkID      string            `json:"chunk_id"`
	AgencyName   string            `json:"agency_name"`
	StateCode    string            `json:"state_code"`
	ProtocolName string            `json:"protocol_name"`
	ProtocolCode string            `json:"protocol_code"`
	ProtocolType string            `json:"protocol_type"`
	Category     string            `json:"category"`
	ChunkIndex   int               `json:"chunk_index"`
	TotalChunks  int               `json:"total_chunks"`
	Content      string            `json:"content"`
	SourceFile   string            `json:"source_file"`
	SourceURL    string            `json:"source_url,omitempty"`
	Metadata     map[string]string `json:"metadata"`
	Embedding    vector            `json:"embedding"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
}

func toRow(c *core.Chunk, now time.Time) row {
	r := row{
		ChunkID:      c.ID,
		AgencyName:   c.AgencyName,
		StateCode:    c.JurisdictionCode,
		ProtocolName: c.ProtocolTitle,
		ProtocolCode: c.ProtocolNumber,
		ProtocolType: string(c.ProtocolType),
		Category:     c.Section,
		ChunkIndex:   c.Ordinal,
		TotalChunks:  c.TotalChunks,
		Content:      c.Content,
		SourceFile:   c.SourceReference,
		Metadata:     c.Metadata,
		Embedding:    c.Vector,
		CreatedAt:    &now,
	}
	if strings.HasPrefix(c.SourceReference, "http://") || strings.HasPrefix(c.SourceReference, "https://") {
		r.SourceURL = c.SourceReference
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	return r
}

func (r row) chunk() *core.Chunk {
	c := &core.Chunk{
		ID:               r.ChunkID,
		AgencyName:       r.AgencyName,
		JurisdictionCode: r.StateCode,
		ProtocolTitle:    r.ProtocolName,
		ProtocolNumber:   r.ProtocolCode,
		ProtocolType:     core.ProtocolType(r.ProtocolType),
		Section:          r.Category,
		Ordinal:          r.ChunkIndex,
		TotalChunks:      r.TotalChunks,
		Content:          r.Content,
		SourceReference:  r.SourceFile,
		Vector:           []float32(r.Embedding),
	}
	if len(r.Metadata) > 0 {
		c.Metadata = r.Metadata
	}
	if r.CreatedAt != nil {
		c.InsertedAt = r.CreatedAt.UTC()
	}
	return c
}

// vector marshals as a JSON array. pgvector columns come back from
// PostgREST as a string such as "[0.1,0.2]", so both forms are accepted.
type vector []float32

func (v *vector) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode embedding: %w", err)
	}
	*v = values
	return nil
}
