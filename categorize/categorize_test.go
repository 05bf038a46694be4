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
	"slices"
	"testing"

	"github.com/poiesic/protoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize_KeywordsFirst(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{name: "neurological only", in: Input{Title: "Stroke and Seizure"}, want: Neurological},
		{name: "trauma beats pediatric", in: Input{Title: "Pediatric Trauma"}, want: Trauma},
		{name: "cardiac beats everything", in: Input{Title: "Pediatric Cardiac Arrest"}, want: Cardiac},
		{name: "keyword in path", in: Input{Title: "Guidelines", Path: "Protocols/Respiratory"}, want: Respiratory},
		{name: "case insensitive", in: Input{Title: "OVERDOSE"}, want: Toxicology},
		{name: "obstetric", in: Input{Title: "Emergency Childbirth"}, want: Pediatric},
		{name: "obstetric without child", in: Input{Title: "Imminent Delivery"}, want: Obstetrics},
		{name: "procedures", in: Input{Title: "Needle Decompression Procedure"}, want: Procedures},
		{name: "policies", in: Input{Title: "Documentation Policy"}, want: Policies},
		{name: "numeric section", in: Input{Title: "Base Hospital Designation", Number: "402"}, want: Facilities},
		{name: "clinical section without keywords", in: Input{Title: "Hypoglycemia", Number: "702"}, want: ClinicalGeneral},
		{name: "unknown path segment", in: Input{Title: "Fee Schedule", Path: "Root/Billing/2025"}, want: General},
		{name: "path segment canonical", in: Input{Title: "Fee Schedule", Path: "Root/forms"}, want: Forms},
		{name: "general", in: Input{Title: "Miscellaneous"}, want: General},
		{name: "empty", in: Input{}, want: General},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(tt.in))
		})
	}
}

func TestCategorize_ContentIgnoredByDefault(t *testing.T) {
	in := Input{Title: "Medication Formulary", Content: "Administer narcan for suspected overdose."}

	assert.Equal(t, General, New().Categorize(in))
	assert.Equal(t, Toxicology, New(WithContent(true)).Categorize(in))
}

func TestCategorize_SectionFirst(t *testing.T) {
	c := New(WithStrategy(SectionFirst), WithContent(true))

	assert.Equal(t, Personnel, c.Categorize(Input{Title: "Trauma Center Staffing", Number: "210"}))
	assert.Equal(t, Trauma, c.Categorize(Input{Title: "Trauma Center Staffing", Number: "710"}))
	assert.Equal(t, ClinicalGeneral, c.Categorize(Input{Title: "Hypoglycemia", Number: "702"}))
	assert.Equal(t, Cardiac, c.Categorize(Input{Title: "STEMI", Number: "Unknown"}))
}

func TestCategorize_Total(t *testing.T) {
	c := New()
	inputs := []Input{
		{},
		{Path: "/"},
		{Path: "a/"},
		{Number: "0"},
		{Number: "x7"},
		{Title: "\x00\xff"},
		{Title: "Fee Schedule", Path: "Root/Billing"},
		{Path: "protocols/Unlisted Folder/Sub"},
	}
	for _, in := range inputs {
		label := c.Categorize(in)
		assert.True(t, slices.Contains(Taxonomy, label), "label %q for %+v", label, in)
	}
}

func TestProtocolType(t *testing.T) {
	assert.Equal(t, core.ProtocolTypeProtocol, ProtocolType(TypeBySection, "700-A01", "", ""))
	assert.Equal(t, core.ProtocolTypePolicy, ProtocolType(TypeBySection, "106", "", ""))
	assert.Equal(t, core.ProtocolTypePolicy, ProtocolType(TypeBySection, "Unknown", "", ""))

	assert.Equal(t, core.ProtocolTypeProtocol, ProtocolType(TypeByPath, "", "Treatment Protocols/Adult", "Chest Pain.pdf"))
	assert.Equal(t, core.ProtocolTypeProcedure, ProtocolType(TypeByPath, "", "Skills", "Procedure - CPAP.pdf"))
	assert.Equal(t, core.ProtocolTypeAssessment, ProtocolType(TypeByPath, "", "Assessment Tools", "Stroke Scale.pdf"))
	assert.Equal(t, core.ProtocolTypeMemo, ProtocolType(TypeByPath, "", "Memos", "2025 Update.pdf"))
	assert.Equal(t, core.ProtocolTypeForm, ProtocolType(TypeByPath, "", "Forms", "Refusal.pdf"))
	assert.Equal(t, core.ProtocolTypePolicy, ProtocolType(TypeByPath, "", "Administration", "Hours.pdf"))
}

func TestParseStrategyAndTypeRule(t *testing.T) {
	s, err := ParseStrategy("section")
	require.NoError(t, err)
	assert.Equal(t, SectionFirst, s)
	_, err = ParseStrategy("random")
	assert.Error(t, err)

	r, err := ParseTypeRule("PATH")
	require.NoError(t, err)
	assert.Equal(t, TypeByPath, r)
	_, err = ParseTypeRule("random")
	assert.Error(t, err)
}
