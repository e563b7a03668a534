package triage

import (
	"fmt"
	"sort"
	"strings"
)

// Problem is a single configuration defect located by a dotted path.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ValidationError collects every defect found while validating a catalog so
// callers can report them together.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "triage: invalid catalog"
	case 1:
		return "triage: invalid catalog: " + e.Problems[0].String()
	}
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, p.String())
	}
	return fmt.Sprintf("triage: invalid catalog (%d problems):\n  %s", len(e.Problems), strings.Join(lines, "\n  "))
}

func (doc Document) problems() []Problem {
	var out []Problem
	add := func(path, format string, args ...any) {
		out = append(out, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	if doc.Version < 1 {
		add("version", "version must be >= 1")
	}

	for _, tier := range Tiers {
		display, ok := doc.Severity[tier]
		if !ok {
			add("severity", "missing display for tier %s", tier)
			continue
		}
		if display.Label == "" {
			add("severity."+string(tier)+".label", "label is required")
		}
	}
	for tier := range doc.Severity {
		if !tier.Valid() {
			add("severity", "unknown severity tier %q", tier)
		}
	}

	regionIDs := map[string]struct{}{}
	for i, region := range doc.Regions {
		path := fmt.Sprintf("regions[%d]", i)
		if region.ID == "" {
			add(path+".id", "region id is required")
		} else if _, dup := regionIDs[region.ID]; dup {
			add(path+".id", "duplicate region id %s", region.ID)
		}
		regionIDs[region.ID] = struct{}{}
		for tier := range region.Hotlines {
			if !tier.Escalated() {
				add(path+".hotlines", "tier %s does not carry hotline numbers", tier)
			}
		}
		for tier := range region.Guidance {
			if !tier.Escalated() {
				add(path+".guidance", "tier %s does not carry regional guidance", tier)
			}
		}
	}

	if len(doc.EmergencyScreening) == 0 {
		add("emergency_screening", "at least one emergency question is required")
	}
	emergencyIDs := map[string]struct{}{}
	for i, q := range doc.EmergencyScreening {
		path := fmt.Sprintf("emergency_screening[%d]", i)
		if q.ID == "" {
			add(path+".id", "question id is required")
		} else if _, dup := emergencyIDs[q.ID]; dup {
			add(path+".id", "duplicate emergency question id %s", q.ID)
		}
		emergencyIDs[q.ID] = struct{}{}
		if q.Text == "" {
			add(path+".text", "question text is required")
		}
		out = append(out, q.Result.problems(path+".result")...)
	}

	if len(doc.AgeGroups) == 0 {
		add("age_groups", "at least one age group is required")
	}
	ageIDs := map[string]struct{}{}
	for i, group := range doc.AgeGroups {
		path := fmt.Sprintf("age_groups[%d]", i)
		if group.ID == "" {
			add(path+".id", "age group id is required")
		} else if _, dup := ageIDs[group.ID]; dup {
			add(path+".id", "duplicate age group id %s", group.ID)
		}
		ageIDs[group.ID] = struct{}{}
		if group.Label == "" {
			add(path+".label", "label is required")
		}
	}

	if len(doc.SymptomGroups) == 0 {
		add("symptom_groups", "at least one symptom group is required")
	}
	groupIDs := map[string]struct{}{}
	for i, group := range doc.SymptomGroups {
		path := fmt.Sprintf("symptom_groups[%d]", i)
		if group.ID == "" {
			add(path+".id", "symptom group id is required")
		} else if _, dup := groupIDs[group.ID]; dup {
			add(path+".id", "duplicate symptom group id %s", group.ID)
		}
		groupIDs[group.ID] = struct{}{}
		if group.Label == "" {
			add(path+".label", "label is required")
		}
		if len(group.Symptoms) == 0 {
			add(path+".symptoms", "at least one symptom slug is required")
		}
		slugs := map[string]struct{}{}
		for _, slug := range group.Symptoms {
			if _, dup := slugs[slug]; dup {
				add(path+".symptoms", "duplicate symptom slug %s", slug)
			}
			slugs[slug] = struct{}{}
			if _, ok := doc.Symptoms[slug]; !ok {
				add(path+".symptoms", "references unknown symptom %s", slug)
			}
		}
	}

	for _, ageID := range sortedKeys(doc.AgeOverrides) {
		if _, ok := ageIDs[ageID]; !ok {
			add("age_overrides."+ageID, "references unknown age group %s", ageID)
		}
		byGroup := doc.AgeOverrides[ageID]
		for _, groupID := range sortedKeys(byGroup) {
			path := "age_overrides." + ageID + "." + groupID
			if _, ok := groupIDs[groupID]; !ok {
				add(path, "references unknown symptom group %s", groupID)
			}
			out = append(out, byGroup[groupID].problems(path)...)
		}
	}

	if len(doc.Symptoms) == 0 {
		add("symptoms", "at least one symptom is required")
	}
	for _, slug := range sortedKeys(doc.Symptoms) {
		symptom := doc.Symptoms[slug]
		path := "symptoms." + slug
		if symptom.Slug != slug {
			add(path+".slug", "slug %s does not match key %s", symptom.Slug, slug)
		}
		out = append(out, symptom.problems(path)...)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
