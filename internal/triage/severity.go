package triage

import (
	"fmt"
	"strings"
)

// Tier is one value of the closed urgency enumeration.
type Tier string

const (
	// TierEmergency means call an ambulance now.
	TierEmergency Tier = "emergency"
	// TierHotline means call the pediatric advice line before deciding.
	TierHotline Tier = "hotline"
	// TierNextDay means see a doctor during the next clinic hours.
	TierNextDay Tier = "next-day"
	// TierHomeCare means watch at home and re-check if anything changes.
	TierHomeCare Tier = "home-care"
)

// Tiers lists every tier from most to least urgent.
var Tiers = []Tier{TierEmergency, TierHotline, TierNextDay, TierHomeCare}

// ParseTier converts a configuration or API value into a Tier.
func ParseTier(value string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(value)))
	if !tier.Valid() {
		return "", fmt.Errorf("unknown severity tier %q", value)
	}
	return tier, nil
}

// Valid reports whether t belongs to the enumeration.
func (t Tier) Valid() bool {
	switch t {
	case TierEmergency, TierHotline, TierNextDay, TierHomeCare:
		return true
	default:
		return false
	}
}

// Urgency ranks tiers; higher is more urgent. Unknown tiers rank 0.
func (t Tier) Urgency() int {
	switch t {
	case TierEmergency:
		return 4
	case TierHotline:
		return 3
	case TierNextDay:
		return 2
	case TierHomeCare:
		return 1
	default:
		return 0
	}
}

// Escalated reports whether results of this tier carry hotline numbers and
// regional guidance.
func (t Tier) Escalated() bool {
	return t == TierEmergency || t == TierHotline
}

// UnmarshalText rejects values outside the enumeration so catalogs with a
// misspelled tier fail at load.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Display is the static presentation metadata of a tier.
type Display struct {
	Label   string `json:"label" yaml:"label"`
	Color   string `json:"color" yaml:"color"`
	Hotline string `json:"hotline,omitempty" yaml:"hotline,omitempty"`
}

// Result is a terminal severity classification with actionable guidance.
type Result struct {
	Tier             Tier     `json:"tier" yaml:"tier"`
	Title            string   `json:"title" yaml:"title"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	Actions          []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Hotline          string   `json:"hotline,omitempty" yaml:"-"`
	RegionalGuidance []string `json:"regional_guidance,omitempty" yaml:"-"`
}

// Clone returns a deep copy of the result.
func (r Result) Clone() Result {
	clone := r
	clone.Actions = cloneStrings(r.Actions)
	clone.RegionalGuidance = cloneStrings(r.RegionalGuidance)
	return clone
}

func (r *Result) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Actions = trimNonEmpty(r.Actions)
}

func (r Result) problems(path string) []Problem {
	var out []Problem
	if !r.Tier.Valid() {
		out = append(out, Problem{Path: path + ".tier", Message: fmt.Sprintf("unknown severity tier %q", r.Tier)})
	}
	if r.Title == "" {
		out = append(out, Problem{Path: path + ".title", Message: "title is required"})
	}
	return out
}

// Region supplies locale-specific hotline numbers and guidance for escalated
// tiers.
type Region struct {
	ID       string            `json:"id" yaml:"id"`
	Label    string            `json:"label" yaml:"label"`
	Hotlines map[Tier]string   `json:"hotlines,omitempty" yaml:"hotlines,omitempty"`
	Guidance map[Tier][]string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
}

func (r Region) clone() Region {
	out := Region{ID: r.ID, Label: r.Label}
	if len(r.Hotlines) > 0 {
		out.Hotlines = make(map[Tier]string, len(r.Hotlines))
		for tier, number := range r.Hotlines {
			out.Hotlines[tier] = number
		}
	}
	if len(r.Guidance) > 0 {
		out.Guidance = make(map[Tier][]string, len(r.Guidance))
		for tier, lines := range r.Guidance {
			out.Guidance[tier] = cloneStrings(lines)
		}
	}
	return out
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func trimNonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
