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

// Package reembed refreshes the vectors of stored protocol chunks.
//
// When the embedding model changes, an agency's chunks can be embedded
// again from their stored title and content without re-reading or
// re-chunking the source documents. Chunk identities and content are left
// unchanged; only vectors are replaced.
package reembed
