package intake

import "github.com/kingrea/nestguide/internal/triage"

// Prompt is a yes/no question as presented to the caregiver.
type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Help string `json:"help,omitempty"`
}

// EmergencyView is the pre-screening question awaiting an answer.
type EmergencyView struct {
	Prompt
	Position int `json:"position"`
	Total    int `json:"total"`
}

// SymptomChoice is one option of the sub-symptom step.
type SymptomChoice struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AgeNote     string `json:"age_note,omitempty"`
}

// SymptomView is the active symptom's current question.
type SymptomView struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	AgeNote  string   `json:"age_note,omitempty"`
	Question Prompt   `json:"question"`
	Answered []string `json:"answered,omitempty"`
	MaxSteps int      `json:"max_steps"`
}

// ResultView is a finished interview's result with its tier display.
type ResultView struct {
	Result  triage.Result  `json:"result"`
	Display triage.Display `json:"display"`
	Source  string         `json:"source"`
}

// View is a read-only projection of a dispatcher for rendering. Only the
// fields relevant to Stage are set.
type View struct {
	Stage         Stage                 `json:"stage"`
	AgeGroup      string                `json:"age_group,omitempty"`
	SymptomGroup  string                `json:"symptom_group,omitempty"`
	Emergency     *EmergencyView        `json:"emergency,omitempty"`
	AgeGroups     []triage.AgeGroup     `json:"age_groups,omitempty"`
	SymptomGroups []triage.SymptomGroup `json:"symptom_groups,omitempty"`
	SubSymptoms   []SymptomChoice       `json:"sub_symptoms,omitempty"`
	Symptom       *SymptomView          `json:"symptom,omitempty"`
	Result        *ResultView           `json:"result,omitempty"`
}

// Snapshot projects the current state into a View.
func (d *Dispatcher) Snapshot() View {
	view := View{Stage: d.stage, AgeGroup: d.ageGroup, SymptomGroup: d.group}
	switch d.stage {
	case StageEmergency:
		if q, ok := d.catalog.EmergencyQuestion(d.index); ok {
			view.Emergency = &EmergencyView{
				Prompt:   Prompt{ID: q.ID, Text: q.Text, Help: q.Help},
				Position: d.index + 1,
				Total:    d.catalog.EmergencyCount(),
			}
		}
	case StageAgeSelect:
		view.AgeGroups = d.catalog.AgeGroups()
	case StageSymptomGroup:
		view.SymptomGroups = d.catalog.SymptomGroups()
	case StageSubSymptom:
		group, _ := d.catalog.SymptomGroup(d.group)
		for _, slug := range group.Symptoms {
			symptom, ok := d.catalog.Symptom(slug)
			if !ok {
				continue
			}
			view.SubSymptoms = append(view.SubSymptoms, SymptomChoice{
				Slug:        slug,
				Name:        symptom.Name,
				Description: symptom.Description,
				AgeNote:     symptom.AgeNote,
			})
		}
	case StageSymptomQuestions:
		if d.engine == nil {
			break
		}
		symptom := d.engine.Symptom()
		q, _ := d.engine.Current()
		view.Symptom = &SymptomView{
			Slug:     symptom.Slug,
			Name:     symptom.Name,
			AgeNote:  symptom.AgeNote,
			Question: Prompt{ID: q.ID, Text: q.Text, Help: q.Help},
			Answered: d.engine.Path(),
			MaxSteps: len(symptom.Questions),
		}
	case StageResult:
		display, _ := d.catalog.DisplayFor(d.result.Tier)
		view.Result = &ResultView{
			Result:  d.result.Clone(),
			Display: display,
			Source:  d.source,
		}
	}
	return view
}
