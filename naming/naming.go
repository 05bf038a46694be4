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

// Package naming derives a protocol number and title from a document's file
// name or from short-name metadata supplied by the document source.
//
// Parsing never fails. When no code can be isolated the number is Unknown
// and the cleaned file name becomes the title.
package naming

import (
	"path"
	"regexp"
	"strings"

	"github.com/poiesic/protoingest/core"
)

const (
	// Unknown is the number reported when no code can be found.
	Unknown = "Unknown"

	// MaxShortNameLength bounds a source-supplied short name.
	MaxShortNameLength = 50
)

var (
	// A leading code: optional letter prefix, digits with optional dotted
	// parts, an optional hyphenated suffix and a trailing letter. The title
	// follows after a run of spaces, underscores or hyphens.
	leadingCode = regexp.MustCompile(`^((?:[A-Za-z]{1,3}-?)?\d+(?:\.\d+)*(?:-(?:\d+|[A-Za-z]\d*))?[A-Za-z]?)(?:[\s_-]+(.*))?$`)

	bracketCode = regexp.MustCompile(`\[([A-Z0-9-]+)\]`)
	extension   = regexp.MustCompile(`^\.[A-Za-z][A-Za-z0-9]{0,4}$`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Identifier is the structured name of a protocol document.
type Identifier struct {
	Number string
	Title  string
}

// Display renders the identifier as "<number> - <title>". The number is
// omitted when it is Unknown or already leads the title.
func (id Identifier) Display() string {
	switch {
	case id.Number == "" || id.Number == Unknown:
		return id.Title
	case id.Title == "":
		return id.Number
	case strings.HasPrefix(id.Title, id.Number):
		return id.Title
	default:
		return id.Number + " - " + id.Title
	}
}

// Parse derives an Identifier from a file name and an optional
// authoritative short name. A non-empty short name is used verbatim as the
// number, truncated to MaxShortNameLength.
func Parse(name, shortName string) Identifier {
	base := Clean(name)

	if short := strings.TrimSpace(shortName); short != "" {
		return Identifier{
			Number: core.TruncateRunes(short, MaxShortNameLength),
			Title:  base,
		}
	}

	stem := StripExtension(baseName(name))
	if m := leadingCode.FindStringSubmatch(stem); m != nil {
		title := cleanTitle(m[2])
		if title == "" {
			title = m[1]
		}
		return Identifier{Number: m[1], Title: title}
	}

	if m := bracketCode.FindStringSubmatchIndex(stem); m != nil {
		title := cleanTitle(stem[:m[0]] + " " + stem[m[1]:])
		if title == "" {
			title = base
		}
		return Identifier{Number: stem[m[2]:m[3]], Title: title}
	}

	return Identifier{Number: Unknown, Title: base}
}

// Clean returns the file name without directory or extension, with
// underscores rendered as spaces.
func Clean(name string) string {
	return cleanTitle(StripExtension(baseName(name)))
}

// StripExtension removes a trailing file extension. Dotted numeric
// suffixes such as "700.10" are not treated as extensions.
func StripExtension(name string) string {
	ext := path.Ext(name)
	if ext != "" && extension.MatchString(ext) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

func baseName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	if name == "" {
		return ""
	}
	return path.Base(name)
}

func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
