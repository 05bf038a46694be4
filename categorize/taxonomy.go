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

import "strings"

// Section labels.
const (
	Cardiac            = "Cardiac"
	Trauma             = "Trauma"
	Pediatric          = "Pediatric"
	Respiratory        = "Respiratory"
	Neurological       = "Neurological"
	Toxicology         = "Toxicology"
	Obstetrics         = "Obstetrics"
	Behavioral         = "Behavioral"
	Environmental      = "Environmental"
	Procedures         = "Procedures"
	Policies           = "Policies"
	Assessment         = "Assessment"
	Administrative     = "Administrative"
	Personnel          = "Personnel"
	SystemProviders    = "System Providers"
	Facilities         = "Facilities"
	Communications     = "Communications"
	Operations         = "Operations"
	ClinicalGeneral    = "Clinical - General"
	ReferenceMaterials = "Reference Materials"
	Forms              = "Forms"
	General            = "General"
)

// Taxonomy lists every fixed section label.
var Taxonomy = []string{
	Cardiac, Trauma, Pediatric, Respiratory, Neurological, Toxicology,
	Obstetrics, Behavioral, Environmental, Procedures, Policies, Assessment,
	Administrative, Personnel, SystemProviders, Facilities, Communications,
	Operations, ClinicalGeneral, ReferenceMaterials, Forms, General,
}

type keywordGroup struct {
	label    string
	keywords []string
}

// keywordGroups is ordered by priority.
var keywordGroups = []keywordGroup{
	{Cardiac, []string{"cardiac", "arrest", "stemi", "cpr", "aed"}},
	{Trauma, []string{"trauma", "injury", "hemorrhage", "bleeding", "crush", "burn"}},
	{Pediatric, []string{"pediatric", "child", "infant", "neonate", "neonatal"}},
	{Respiratory, []string{"airway", "respiratory", "breathing", "intubat", "asthma", "copd"}},
	{Neurological, []string{"stroke", "seizure", "neurolog", "altered mental", "syncope"}},
	{Toxicology, []string{"overdose", "poison", "toxic", "narcan"}},
	{Obstetrics, []string{"pregnancy", "childbirth", "obstetric", "labor", "ob/gyn", "delivery"}},
	{Behavioral, []string{"behavioral", "psychiatric", "agitat", "5150", "mental health"}},
	{Environmental, []string{"environment", "hyperthermia", "hypothermia", "heat", "cold", "drowning"}},
	{Procedures, []string{"procedure"}},
	{Policies, []string{"policy", "policies"}},
	{Assessment, []string{"assessment"}},
}

// sectionLabels maps the leading digit of a protocol number to its
// administrative section. Section 7 is clinical and resolved by keywords.
var sectionLabels = map[byte]string{
	'1': Administrative,
	'2': Personnel,
	'3': SystemProviders,
	'4': Facilities,
	'5': Communications,
	'6': Operations,
	'7': ClinicalGeneral,
	'8': ReferenceMaterials,
	'9': Forms,
}

// matchKeywords returns the label of the first keyword group found in
// lower, or "".
func matchKeywords(lower string) string {
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.label
			}
		}
	}
	return ""
}

// sectionDigit returns the leading digit of number, or 0 when the number
// does not start with a digit.
func sectionDigit(number string) byte {
	number = strings.TrimSpace(number)
	if number == "" || number[0] < '0' || number[0] > '9' {
		return 0
	}
	return number[0]
}

// canonical returns the taxonomy spelling of label when it names a fixed
// section.
func canonical(label string) (string, bool) {
	for _, known := range Taxonomy {
		if strings.EqualFold(known, label) {
			return known, true
		}
	}
	return "", false
}
