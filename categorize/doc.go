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

// Package categorize assigns protocol documents to a topical section and a
// protocol type.
//
// Categorization is keyword driven and case-insensitive. Keyword groups are
// checked in a fixed priority order and the first matching group wins, so
// a trauma protocol that mentions children is still filed under Trauma.
// When no keyword matches, the leading digit of the protocol number selects
// an administrative section, then the second segment of the category path is
// used, and finally General. Categorize never fails.
package categorize
