package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EdgeKind tags the two variants of an Edge.
type EdgeKind int

const (
	// EdgeUnset is the zero value; validated catalogs never contain it.
	EdgeUnset EdgeKind = iota
	// EdgeReference continues traversal at another question.
	EdgeReference
	// EdgeTerminal stops traversal with a result.
	EdgeTerminal
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeReference:
		return "reference"
	case EdgeTerminal:
		return "terminal"
	default:
		return "unset"
	}
}

// Edge is the outcome of answering a question: either a reference to the
// next question or a terminal result. Construct edges with Reference or
// Terminal.
type Edge struct {
	kind   EdgeKind
	target string
	result Result
}

// Reference builds an edge continuing at question id.
func Reference(id string) Edge {
	return Edge{kind: EdgeReference, target: strings.TrimSpace(id)}
}

// Terminal builds an edge that stops with result.
func Terminal(result Result) Edge {
	return Edge{kind: EdgeTerminal, result: result.Clone()}
}

// Kind reports which variant the edge holds.
func (e Edge) Kind() EdgeKind { return e.kind }

// Target returns the referenced question id; empty for terminal edges.
func (e Edge) Target() string { return e.target }

// Result returns a copy of the terminal result; the zero Result for references.
func (e Edge) Result() Result {
	if e.kind != EdgeTerminal {
		return Result{}
	}
	return e.result.Clone()
}

func (e Edge) clone() Edge {
	if e.kind == EdgeTerminal {
		return Terminal(e.result)
	}
	return e
}

// UnmarshalYAML accepts a scalar question id or a result mapping.
func (e *Edge) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if strings.TrimSpace(node.Value) == "" {
			return fmt.Errorf("line %d: edge reference is empty", node.Line)
		}
		*e = Reference(node.Value)
		return nil
	case yaml.MappingNode:
		var result Result
		if err := node.Decode(&result); err != nil {
			return err
		}
		result.normalize()
		*e = Terminal(result)
		return nil
	default:
		return fmt.Errorf("line %d: edge must be a question id or a result mapping", node.Line)
	}
}

// MarshalYAML mirrors UnmarshalYAML.
func (e Edge) MarshalYAML() (any, error) {
	switch e.kind {
	case EdgeReference:
		return e.target, nil
	case EdgeTerminal:
		return e.result, nil
	default:
		return nil, fmt.Errorf("cannot encode unset edge")
	}
}

// MarshalJSON encodes references as {"next": id} and terminals as
// {"result": {...}}.
func (e Edge) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case EdgeReference:
		return json.Marshal(struct {
			Next string `json:"next"`
		}{e.target})
	case EdgeTerminal:
		return json.Marshal(struct {
			Result Result `json:"result"`
		}{e.result})
	default:
		return []byte("null"), nil
	}
}

// Question is one yes/no node of a symptom graph.
type Question struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
	Help string `json:"help,omitempty" yaml:"help,omitempty"`
	Yes  Edge   `json:"yes" yaml:"yes"`
	No   Edge   `json:"no" yaml:"no"`
}

// Edge returns the outgoing edge for an answer.
func (q Question) Edge(answer Answer) Edge {
	if answer == AnswerYes {
		return q.Yes
	}
	return q.No
}

func (q Question) clone() Question {
	out := q
	out.Yes = q.Yes.clone()
	out.No = q.No.clone()
	return out
}

// Symptom is a named decision graph rooted at Entry.
type Symptom struct {
	Slug        string     `json:"slug" yaml:"slug,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	AgeNote     string     `json:"age_note,omitempty" yaml:"age_note,omitempty"`
	Entry       string     `json:"entry" yaml:"entry"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Clone returns a deep copy of the symptom.
func (s Symptom) Clone() Symptom {
	out := s
	if len(s.Questions) > 0 {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			out.Questions[i] = q.clone()
		}
	}
	return out
}

// Question looks up a question by id.
func (s Symptom) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks the graph invariants: unique ids, an existing entry, no
// dangling references, every node reachable and no cycles.
func (s Symptom) Validate() error {
	if problems := s.problems("symptom " + s.Slug); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Depth returns the longest number of answers needed to reach a terminal
// edge from the entry question. Only meaningful for valid symptoms.
func (s Symptom) Depth() int {
	index := s.index()
	memo := map[string]int{}
	var walk func(id string) int
	walk = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		memo[id] = 0
		q, ok := index[id]
		if !ok {
			return 0
		}
		best := 0
		for _, edge := range []Edge{q.Yes, q.No} {
			d := 1
			if edge.Kind() == EdgeReference {
				d += walk(edge.Target())
			}
			if d > best {
				best = d
			}
		}
		memo[id] = best
		return best
	}
	return walk(s.Entry)
}

func (s *Symptom) normalize(slug string) {
	s.Slug = strings.TrimSpace(s.Slug)
	if s.Slug == "" {
		s.Slug = slug
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	s.AgeNote = strings.TrimSpace(s.AgeNote)
	s.Entry = strings.TrimSpace(s.Entry)
	for i := range s.Questions {
		q := &s.Questions[i]
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		q.Help = strings.TrimSpace(q.Help)
	}
}

func (s Symptom) index() map[string]Question {
	index := make(map[string]Question, len(s.Questions))
	for _, q := range s.Questions {
		if _, dup := index[q.ID]; !dup {
			index[q.ID] = q
		}
	}
	return index
}

func (s Symptom) problems(path string) []Problem {
	var out []Problem
	add := func(p, format string, args ...any) {
		out = append(out, Problem{Path: p, Message: fmt.Sprintf(format, args...)})
	}
	if s.Slug == "" {
		add(path, "slug is required")
	}
	if s.Name == "" {
		add(path+".name", "name is required")
	}
	if len(s.Questions) == 0 {
		add(path+".questions", "at least one question is required")
		return out
	}
	seen := map[string]struct{}{}
	for i, q := range s.Questions {
		qpath := fmt.Sprintf("%s.questions[%d]", path, i)
		if q.ID == "" {
			add(qpath+".id", "question id is required")
		} else if _, dup := seen[q.ID]; dup {
			add(qpath+".id", "duplicate question id %s", q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Text == "" {
			add(qpath+".text", "question text is required")
		}
		for _, side := range []struct {
			name string
			edge Edge
		}{{"yes", q.Yes}, {"no", q.No}} {
			epath := qpath + "." + side.name
			switch side.edge.Kind() {
			case EdgeReference:
				if !s.hasQuestion(side.edge.Target()) {
					add(epath, "references unknown question %s", side.edge.Target())
				}
			case EdgeTerminal:
				out = append(out, side.edge.result.problems(epath)...)
			default:
				add(epath, "edge is missing")
			}
		}
	}
	if s.Entry == "" {
		add(path+".entry", "entry question is required")
		return out
	}
	if !s.hasQuestion(s.Entry) {
		add(path+".entry", "entry references unknown question %s", s.Entry)
		return out
	}
	out = append(out, s.graphProblems(path)...)
	return out
}

func (s Symptom) hasQuestion(id string) bool {
	for _, q := range s.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// graphProblems reports cycles and unreachable questions using a coloured
// depth-first walk from the entry question.
func (s Symptom) graphProblems(path string) []Problem {
	const (
		white = iota
		grey
		black
	)
	index := s.index()
	colour := make(map[string]int, len(index))
	var out []Problem
	var visit func(id string, trail []string)
	visit = func(id string, trail []string) {
		q, ok := index[id]
		if !ok {
			return
		}
		switch colour[id] {
		case grey:
			cycle := append(append([]string{}, trail...), id)
			out = append(out, Problem{Path: path, Message: "cycle detected: " + strings.Join(cycle, " -> ")})
			return
		case black:
			return
		}
		colour[id] = grey
		trail = append(trail, id)
		for _, edge := range []Edge{q.Yes, q.No} {
			if edge.Kind() == EdgeReference {
				visit(edge.Target(), trail)
			}
		}
		colour[id] = black
	}
	visit(s.Entry, nil)
	for _, q := range s.Questions {
		if q.ID != "" && colour[q.ID] == white {
			out = append(out, Problem{Path: path + ".questions", Message: fmt.Sprintf("question %s is unreachable from entry %s", q.ID, s.Entry)})
		}
	}
	return out
}
