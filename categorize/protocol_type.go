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

package categorize

import (
	"fmt"
	"strings"

	"github.com/poiesic/protoingest/core"
)

// TypeRule selects how a document's protocol type is derived.
type TypeRule int

const (
	// TypeBySection files clinical section 7 documents as Protocol and all
	// other sections as Policy.
	TypeBySection TypeRule = iota
	// TypeByPath looks for type words in the category path and file name.
	TypeByPath
)

// String returns the configuration name of the rule.
func (r TypeRule) String() string {
	switch r {
	case TypeBySection:
		return "section"
	case TypeByPath:
		return "path"
	default:
		return fmt.Sprintf("TypeRule(%d)", int(r))
	}
}

// ParseTypeRule maps a configuration name to a TypeRule.
func ParseTypeRule(name string) (TypeRule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "section":
		return TypeBySection, nil
	case "path":
		return TypeByPath, nil
	default:
		return 0, fmt.Errorf("unknown protocol type rule %q", name)
	}
}

var pathTypes = []struct {
	word string
	typ  core.ProtocolType
}{
	{"protocol", core.ProtocolTypeProtocol},
	{"procedure", core.ProtocolTypeProcedure},
	{"assessment", core.ProtocolTypeAssessment},
	{"memo", core.ProtocolTypeMemo},
	{"form", core.ProtocolTypeForm},
}

// ProtocolType derives the protocol type of a document. The result is
// always a valid core.ProtocolType.
func ProtocolType(rule TypeRule, number, path, name string) core.ProtocolType {
	if rule == TypeByPath {
		lower := strings.ToLower(path + " " + name)
		for _, pt := range pathTypes {
			if strings.Contains(lower, pt.word) {
				return pt.typ
			}
		}
		return core.ProtocolTypePolicy
	}

	if sectionDigit(number) == '7' {
		return core.ProtocolTypeProtocol
	}
	return core.ProtocolTypePolicy
}
