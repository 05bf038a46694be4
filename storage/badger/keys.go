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

package badger

import "bytes"

// Key prefixes for different record types.
const (
	chunkRecordPrefix = "chkrec"
	chunkIDPrefix     = "chkid"
)

const sep = 0x00

// makeChunkKey generates the primary key for a chunk.
// Format: prefix:agency\x00jurisdiction\x00id
// Grouping by agency first lets one prefix scan cover an agency.
func makeChunkKey(agency, jurisdiction, id string) []byte {
	buf := makeAgencyPrefix(agency, jurisdiction)
	return append(buf, id...)
}

// makeAgencyPrefix returns the key prefix of an agency. With an empty
// jurisdiction the prefix covers all jurisdictions of the agency.
func makeAgencyPrefix(agency, jurisdiction string) []byte {
	buf := make([]byte, 0, len(chunkRecordPrefix)+len(agency)+len(jurisdiction)+3)
	buf = append(buf, chunkRecordPrefix...)
	buf = append(buf, ':')
	buf = append(buf, agency...)
	buf = append(buf, sep)
	if jurisdiction != "" {
		buf = append(buf, jurisdiction...)
		buf = append(buf, sep)
	}
	return buf
}

// makeChunkIDKey generates the key of the ID index, whose value is the
// chunk's primary key.
func makeChunkIDKey(id string) []byte {
	return []byte(chunkIDPrefix + ":" + id)
}

// chunkIDFromKey extracts the chunk ID from a primary key.
func chunkIDFromKey(key []byte) string {
	idx := bytes.LastIndexByte(key, sep)
	if idx < 0 {
		return ""
	}
	return string(key[idx+1:])
}
