package triage

import (
	"fmt"
	"strings"
)

// RenderMarkdown describes a symptom graph as markdown, one section per
// question in declaration order.
func RenderMarkdown(s Symptom) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (`%s`)\n\n", s.Name, s.Slug)
	if s.Description != "" {
		b.WriteString(s.Description + "\n\n")
	}
	if s.AgeNote != "" {
		fmt.Fprintf(&b, "> %s\n\n", s.AgeNote)
	}
	fmt.Fprintf(&b, "Entry question: `%s`\n\n", s.Entry)
	for _, q := range s.Questions {
		fmt.Fprintf(&b, "### `%s` %s\n\n", q.ID, q.Text)
		if q.Help != "" {
			fmt.Fprintf(&b, "_%s_\n\n", q.Help)
		}
		fmt.Fprintf(&b, "- **yes** → %s\n", describeEdge(q.Yes))
		fmt.Fprintf(&b, "- **no** → %s\n\n", describeEdge(q.No))
	}
	return b.String()
}

func describeEdge(e Edge) string {
	switch e.Kind() {
	case EdgeReference:
		return fmt.Sprintf("question `%s`", e.Target())
	case EdgeTerminal:
		result := e.Result()
		return fmt.Sprintf("**%s**: %s", result.Tier, result.Title)
	default:
		return "_missing_"
	}
}

// ResultMarkdown renders a result for display, using the tier label from
// display when it is set.
func ResultMarkdown(result Result, display Display) string {
	var b strings.Builder
	label := display.Label
	if label == "" {
		label = string(result.Tier)
	}
	fmt.Fprintf(&b, "# %s\n\n", label)
	fmt.Fprintf(&b, "## %s\n\n", result.Title)
	if result.Description != "" {
		b.WriteString(result.Description + "\n\n")
	}
	if len(result.Actions) > 0 {
		b.WriteString("### What to do\n\n")
		for i, action := range result.Actions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, action)
		}
		b.WriteString("\n")
	}
	if result.Hotline != "" {
		fmt.Fprintf(&b, "**Call:** %s\n\n", result.Hotline)
	}
	for _, line := range result.RegionalGuidance {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Markdown renders the whole catalog: routing tables followed by every
// symptom graph.
func (c *Catalog) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Triage catalog v%d\n\n", c.doc.Version)

	b.WriteString("## Emergency screening\n\n")
	for i, q := range c.doc.EmergencyScreening {
		fmt.Fprintf(&b, "%d. %s (yes → **%s**)\n", i+1, q.Text, q.Result.Tier)
	}
	b.WriteString("\n## Age groups\n\n")
	for _, group := range c.doc.AgeGroups {
		fmt.Fprintf(&b, "- `%s` %s\n", group.ID, group.Label)
	}
	b.WriteString("\n## Symptom groups\n\n| Group | Symptoms |\n|---|---|\n")
	for _, group := range c.doc.SymptomGroups {
		fmt.Fprintf(&b, "| %s | %s |\n", group.Label, strings.Join(group.Symptoms, ", "))
	}
	if len(c.doc.AgeOverrides) > 0 {
		b.WriteString("\n## Age overrides\n\n| Age | Group | Tier |\n|---|---|---|\n")
		for _, age := range sortedKeys(c.doc.AgeOverrides) {
			byGroup := c.doc.AgeOverrides[age]
			for _, group := range sortedKeys(byGroup) {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", age, group, byGroup[group].Tier)
			}
		}
	}
	b.WriteString("\n")
	for _, slug := range sortedKeys(c.doc.Symptoms) {
		b.WriteString(RenderMarkdown(c.doc.Symptoms[slug]))
	}
	return b.String()
}
