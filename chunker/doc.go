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

// Package chunker splits protocol text into overlapping, boundary-aware
// pieces sized for embedding and retrieval.
//
// Splitting is a pure function of the input text and the Config. The same
// text and configuration always produce identical output.
//
// # Normalization
//
// Two whitespace policies are supported. NormalizeParagraphs (the default)
// converts CRLF to LF, collapses three or more newlines to a single blank
// line and trims the ends, so paragraph breaks remain available as split
// points. NormalizeCollapse squashes every whitespace run to a single space,
// which leaves only sentence terminators and spaces as split points.
//
// # Break points
//
// When the text does not fit into one chunk, each window of Size bytes is
// shortened to the last natural break found past the middle of the window,
// preferring in order a paragraph break, a sentence terminator, then a
// space. The next window starts Overlap bytes before the previous end.
package chunker
