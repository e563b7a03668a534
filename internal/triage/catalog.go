package triage

import (
	"fmt"
	"strings"
)

// EmergencyQuestion is one item of the flat pre-screening list. A "yes"
// answer always ends the interview with Result.
type EmergencyQuestion struct {
	ID     string `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Help   string `json:"help,omitempty" yaml:"help,omitempty"`
	Result Result `json:"result" yaml:"result"`
}

// AgeGroup is one band of the age stratification step.
type AgeGroup struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SymptomGroup routes a caregiver-facing category to one or more symptoms.
type SymptomGroup struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Symptoms    []string `json:"symptoms" yaml:"symptoms"`
}

// Document is the raw, mutable catalog document. Turn it into a Catalog with
// NewCatalog before using it.
type Document struct {
	Version            int                          `json:"version" yaml:"version"`
	Severity           map[Tier]Display             `json:"severity" yaml:"severity"`
	Regions            []Region                     `json:"regions,omitempty" yaml:"regions,omitempty"`
	EmergencyScreening []EmergencyQuestion          `json:"emergency_screening" yaml:"emergency_screening"`
	AgeGroups          []AgeGroup                   `json:"age_groups" yaml:"age_groups"`
	SymptomGroups      []SymptomGroup               `json:"symptom_groups" yaml:"symptom_groups"`
	AgeOverrides       map[string]map[string]Result `json:"age_overrides,omitempty" yaml:"age_overrides,omitempty"`
	Symptoms           map[string]Symptom           `json:"symptoms" yaml:"symptoms"`
}

// Clone returns a deep copy of the document.
func (doc Document) Clone() Document {
	out := Document{Version: doc.Version}
	if doc.Severity != nil {
		out.Severity = make(map[Tier]Display, len(doc.Severity))
		for tier, display := range doc.Severity {
			out.Severity[tier] = display
		}
	}
	if len(doc.Regions) > 0 {
		out.Regions = make([]Region, len(doc.Regions))
		for i, region := range doc.Regions {
			out.Regions[i] = region.clone()
		}
	}
	if len(doc.EmergencyScreening) > 0 {
		out.EmergencyScreening = make([]EmergencyQuestion, len(doc.EmergencyScreening))
		for i, q := range doc.EmergencyScreening {
			q.Result = q.Result.Clone()
			out.EmergencyScreening[i] = q
		}
	}
	out.AgeGroups = append([]AgeGroup(nil), doc.AgeGroups...)
	if len(doc.SymptomGroups) > 0 {
		out.SymptomGroups = make([]SymptomGroup, len(doc.SymptomGroups))
		for i, group := range doc.SymptomGroups {
			group.Symptoms = cloneStrings(group.Symptoms)
			out.SymptomGroups[i] = group
		}
	}
	if doc.AgeOverrides != nil {
		out.AgeOverrides = make(map[string]map[string]Result, len(doc.AgeOverrides))
		for age, byGroup := range doc.AgeOverrides {
			inner := make(map[string]Result, len(byGroup))
			for group, result := range byGroup {
				inner[group] = result.Clone()
			}
			out.AgeOverrides[age] = inner
		}
	}
	if doc.Symptoms != nil {
		out.Symptoms = make(map[string]Symptom, len(doc.Symptoms))
		for slug, symptom := range doc.Symptoms {
			out.Symptoms[slug] = symptom.Clone()
		}
	}
	return out
}

func (doc *Document) normalize() {
	for i := range doc.Regions {
		region := &doc.Regions[i]
		region.ID = strings.TrimSpace(region.ID)
		region.Label = strings.TrimSpace(region.Label)
		for tier, lines := range region.Guidance {
			region.Guidance[tier] = trimNonEmpty(lines)
		}
	}
	for tier, display := range doc.Severity {
		display.Label = strings.TrimSpace(display.Label)
		display.Color = strings.TrimSpace(display.Color)
		display.Hotline = strings.TrimSpace(display.Hotline)
		doc.Severity[tier] = display
	}
	for i := range doc.EmergencyScreening {
		q := &doc.EmergencyScreening[i]
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		q.Help = strings.TrimSpace(q.Help)
		q.Result.normalize()
	}
	for i := range doc.AgeGroups {
		group := &doc.AgeGroups[i]
		group.ID = strings.TrimSpace(group.ID)
		group.Label = strings.TrimSpace(group.Label)
		group.Description = strings.TrimSpace(group.Description)
	}
	for i := range doc.SymptomGroups {
		group := &doc.SymptomGroups[i]
		group.ID = strings.TrimSpace(group.ID)
		group.Label = strings.TrimSpace(group.Label)
		group.Icon = strings.TrimSpace(group.Icon)
		group.Description = strings.TrimSpace(group.Description)
		group.Symptoms = trimNonEmpty(group.Symptoms)
	}
	for _, byGroup := range doc.AgeOverrides {
		for group, result := range byGroup {
			result.normalize()
			byGroup[group] = result
		}
	}
	for slug, symptom := range doc.Symptoms {
		symptom.normalize(slug)
		doc.Symptoms[slug] = symptom
	}
}

// Catalog is the validated, immutable triage configuration. It is safe for
// concurrent use by any number of sessions.
type Catalog struct {
	doc       Document
	ageIndex  map[string]int
	groupIdx  map[string]int
	regionIdx map[string]int
}

// NewCatalog normalizes and validates doc. Every defect is reported in a
// single *ValidationError.
func NewCatalog(doc Document) (*Catalog, error) {
	clone := doc.Clone()
	clone.normalize()
	if problems := clone.problems(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	c := &Catalog{
		doc:       clone,
		ageIndex:  make(map[string]int, len(clone.AgeGroups)),
		groupIdx:  make(map[string]int, len(clone.SymptomGroups)),
		regionIdx: make(map[string]int, len(clone.Regions)),
	}
	for i, group := range clone.AgeGroups {
		c.ageIndex[group.ID] = i
	}
	for i, group := range clone.SymptomGroups {
		c.groupIdx[group.ID] = i
	}
	for i, region := range clone.Regions {
		c.regionIdx[region.ID] = i
	}
	return c, nil
}

// Document returns a deep copy of the validated document.
func (c *Catalog) Document() Document { return c.doc.Clone() }

// Version reports the catalog schema version.
func (c *Catalog) Version() int { return c.doc.Version }

// DisplayFor returns the presentation metadata of tier. It only fails for a
// tier outside the enumeration.
func (c *Catalog) DisplayFor(tier Tier) (Display, bool) {
	if !tier.Valid() {
		return Display{}, false
	}
	display, ok := c.doc.Severity[tier]
	return display, ok
}

// EmergencyQuestions returns the pre-screening list in order.
func (c *Catalog) EmergencyQuestions() []EmergencyQuestion {
	out := make([]EmergencyQuestion, len(c.doc.EmergencyScreening))
	for i, q := range c.doc.EmergencyScreening {
		q.Result = q.Result.Clone()
		out[i] = q
	}
	return out
}

// EmergencyQuestion returns the pre-screening question at index.
func (c *Catalog) EmergencyQuestion(index int) (EmergencyQuestion, bool) {
	if index < 0 || index >= len(c.doc.EmergencyScreening) {
		return EmergencyQuestion{}, false
	}
	q := c.doc.EmergencyScreening[index]
	q.Result = q.Result.Clone()
	return q, true
}

// EmergencyCount reports the length of the pre-screening list.
func (c *Catalog) EmergencyCount() int { return len(c.doc.EmergencyScreening) }

// AgeGroups returns the age bands in display order.
func (c *Catalog) AgeGroups() []AgeGroup {
	return append([]AgeGroup(nil), c.doc.AgeGroups...)
}

// AgeGroup looks up an age band by id.
func (c *Catalog) AgeGroup(id string) (AgeGroup, bool) {
	idx, ok := c.ageIndex[id]
	if !ok {
		return AgeGroup{}, false
	}
	return c.doc.AgeGroups[idx], true
}

// SymptomGroups returns the symptom groups in display order.
func (c *Catalog) SymptomGroups() []SymptomGroup {
	out := make([]SymptomGroup, len(c.doc.SymptomGroups))
	for i, group := range c.doc.SymptomGroups {
		group.Symptoms = cloneStrings(group.Symptoms)
		out[i] = group
	}
	return out
}

// SymptomGroup looks up a symptom group by id.
func (c *Catalog) SymptomGroup(id string) (SymptomGroup, bool) {
	idx, ok := c.groupIdx[id]
	if !ok {
		return SymptomGroup{}, false
	}
	group := c.doc.SymptomGroups[idx]
	group.Symptoms = cloneStrings(group.Symptoms)
	return group, true
}

// Override returns the age override for the pair, if configured.
func (c *Catalog) Override(ageGroupID, symptomGroupID string) (Result, bool) {
	result, ok := c.doc.AgeOverrides[ageGroupID][symptomGroupID]
	if !ok {
		return Result{}, false
	}
	return result.Clone(), true
}

// Symptom returns a copy of the symptom graph registered under slug.
func (c *Catalog) Symptom(slug string) (Symptom, bool) {
	symptom, ok := c.doc.Symptoms[slug]
	if !ok {
		return Symptom{}, false
	}
	return symptom.Clone(), true
}

// SymptomSlugs lists every symptom slug in lexical order.
func (c *Catalog) SymptomSlugs() []string { return sortedKeys(c.doc.Symptoms) }

// Regions returns the configured regions.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.doc.Regions))
	for i, region := range c.doc.Regions {
		out[i] = region.clone()
	}
	return out
}

// Region looks up a region by id.
func (c *Catalog) Region(id string) (Region, bool) {
	idx, ok := c.regionIdx[id]
	if !ok {
		return Region{}, false
	}
	return c.doc.Regions[idx].clone(), true
}

// Decorate returns a copy of result with the hotline number and regional
// guidance attached. Only escalated tiers carry either; for every other tier
// both fields are cleared. An empty or unknown regionID falls back to the
// severity-level hotline with no guidance.
func (c *Catalog) Decorate(result Result, regionID string) Result {
	out := result.Clone()
	out.Hotline = ""
	out.RegionalGuidance = nil
	if !out.Tier.Escalated() {
		return out
	}
	if display, ok := c.doc.Severity[out.Tier]; ok {
		out.Hotline = display.Hotline
	}
	idx, ok := c.regionIdx[regionID]
	if !ok {
		return out
	}
	region := c.doc.Regions[idx]
	if number := strings.TrimSpace(region.Hotlines[out.Tier]); number != "" {
		out.Hotline = number
	}
	out.RegionalGuidance = cloneStrings(region.Guidance[out.Tier])
	return out
}

// SymptomSummary describes one symptom graph in a catalog Summary.
type SymptomSummary struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Questions int    `json:"questions"`
	Depth     int    `json:"depth"`
}

// Summary aggregates catalog counts for reporting.
type Summary struct {
	Version            int              `json:"version"`
	EmergencyQuestions int              `json:"emergency_questions"`
	AgeGroups          int              `json:"age_groups"`
	SymptomGroups      int              `json:"symptom_groups"`
	AgeOverrides       int              `json:"age_overrides"`
	Regions            int              `json:"regions"`
	Symptoms           []SymptomSummary `json:"symptoms"`
}

// String renders the summary as a short multi-line report.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog version %d\n", s.Version)
	fmt.Fprintf(&b, "  emergency questions: %d\n", s.EmergencyQuestions)
	fmt.Fprintf(&b, "  age groups: %d\n", s.AgeGroups)
	fmt.Fprintf(&b, "  symptom groups: %d\n", s.SymptomGroups)
	fmt.Fprintf(&b, "  age overrides: %d\n", s.AgeOverrides)
	fmt.Fprintf(&b, "  regions: %d\n", s.Regions)
	fmt.Fprintf(&b, "  symptoms: %d\n", len(s.Symptoms))
	for _, symptom := range s.Symptoms {
		fmt.Fprintf(&b, "    %-20s %2d questions, depth %d\n", symptom.Slug, symptom.Questions, symptom.Depth)
	}
	return b.String()
}

// Summary counts the catalog contents and measures every symptom graph.
func (c *Catalog) Summary() Summary {
	summary := Summary{
		Version:            c.doc.Version,
		EmergencyQuestions: len(c.doc.EmergencyScreening),
		AgeGroups:          len(c.doc.AgeGroups),
		SymptomGroups:      len(c.doc.SymptomGroups),
		Regions:            len(c.doc.Regions),
	}
	for _, byGroup := range c.doc.AgeOverrides {
		summary.AgeOverrides += len(byGroup)
	}
	for _, slug := range sortedKeys(c.doc.Symptoms) {
		symptom := c.doc.Symptoms[slug]
		summary.Symptoms = append(summary.Symptoms, SymptomSummary{
			Slug:      slug,
			Name:      symptom.Name,
			Questions: len(symptom.Questions),
			Depth:     symptom.Depth(),
		})
	}
	return summary
}
