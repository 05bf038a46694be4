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

package core

import (
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ChunkMUS is the MUS serializer for Chunk. The field order is part of the
// on-disk format; append new fields at the end.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) strings(c Chunk) []string {
	return []string{
		c.ID,
		c.AgencyName,
		c.JurisdictionCode,
		c.ProtocolTitle,
		c.ProtocolNumber,
		c.Section,
		string(c.ProtocolType),
		c.Content,
		c.SourceReference,
	}
}

// Marshal writes c into bs, which must hold at least Size(c) bytes.
func (s chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	for _, str := range s.strings(c) {
		n += ord.String.Marshal(str, bs[n:])
	}
	n += varint.Int.Marshal(c.Ordinal, bs[n:])
	n += varint.Int.Marshal(c.TotalChunks, bs[n:])

	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, f := range c.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}

	keys := sortedKeys(c.Metadata)
	n += varint.Int.Marshal(len(keys), bs[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(c.Metadata[k], bs[n:])
	}

	n += varint.Int64.Marshal(timeToMicro(c.InsertedAt), bs[n:])
	return n
}

// Unmarshal reads a Chunk from bs.
func (s chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	fields := []*string{
		&c.ID,
		&c.AgencyName,
		&c.JurisdictionCode,
		&c.ProtocolTitle,
		&c.ProtocolNumber,
		&c.Section,
		nil, // protocol type
		&c.Content,
		&c.SourceReference,
	}
	var (
		str string
		m   int
	)
	for _, field := range fields {
		str, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
		if field == nil {
			c.ProtocolType = ProtocolType(str)
			continue
		}
		*field = str
	}

	if c.Ordinal, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if c.TotalChunks, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m

	var length int
	if length, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if length > 0 {
		c.Vector = make([]float32, length)
		var bits uint32
		for i := range length {
			if bits, m, err = varint.Uint32.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += m
			c.Vector[i] = math.Float32frombits(bits)
		}
	}

	if length, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if length > 0 {
		c.Metadata = make(map[string]string, length)
		var k, v string
		for range length {
			if k, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += m
			if v, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += m
			c.Metadata[k] = v
		}
	}

	var micro int64
	if micro, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if micro != 0 {
		c.InsertedAt = time.UnixMicro(micro)
	}
	return
}

// Size returns the number of bytes Marshal needs for c.
func (s chunkMUS) Size(c Chunk) (size int) {
	for _, str := range s.strings(c) {
		size += ord.String.Size(str)
	}
	size += varint.Int.Size(c.Ordinal)
	size += varint.Int.Size(c.TotalChunks)

	size += varint.Int.Size(len(c.Vector))
	for _, f := range c.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}

	size += varint.Int.Size(len(c.Metadata))
	for k, v := range c.Metadata {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}

	size += varint.Int64.Size(timeToMicro(c.InsertedAt))
	return size
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
