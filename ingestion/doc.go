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

// Package ingestion drives protocol documents into a chunk store.
//
// A Pipeline runs one agency at a time. Each run lists the agency's
// documents, extracts their text, derives protocol numbers, titles,
// sections and types, and splits the text into overlapping chunks. Stored
// chunks for the agency are then deleted and the new chunks are embedded and
// upserted in fixed-size batches on a bounded worker pool.
//
// Documents without usable text are skipped and counted. A failed batch is
// recorded in the run Summary and the run continues. Only configuration
// errors and a failed delete abort a run.
package ingestion
