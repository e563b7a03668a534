package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/nestguide/internal/triage"
)

func defaultCatalog(t *testing.T) *triage.Catalog {
	t.Helper()
	catalog, err := triage.DefaultCatalog()
	require.NoError(t, err)
	return catalog
}

// Answering yes at any pre-screening position yields that question's result.
func TestEmergencyPrecedenceAtEveryPosition(t *testing.T) {
	catalog := defaultCatalog(t)
	for pos, q := range catalog.EmergencyQuestions() {
		d, err := New(catalog)
		require.NoError(t, err)
		for i := 0; i < pos; i++ {
			require.NoError(t, d.AnswerEmergency(triage.AnswerNo))
		}
		require.NoError(t, d.AnswerEmergency(triage.AnswerYes))
		result, ok := d.Result()
		require.True(t, ok)
		assert.Equal(t, q.Result.Title, result.Title, "position %d", pos)
		assert.Equal(t, q.Result.Tier, result.Tier, "position %d", pos)
		assert.Equal(t, StageResult, d.Stage())
	}
}

// Every configured age override wins over the symptom graph.
func TestOverridePrecedenceForEveryPair(t *testing.T) {
	catalog := defaultCatalog(t)
	for _, age := range catalog.AgeGroups() {
		for _, group := range catalog.SymptomGroups() {
			override, ok := catalog.Override(age.ID, group.ID)
			if !ok {
				continue
			}
			d := walkToSymptomGroup(t, catalog, age.ID)
			require.NoError(t, d.SelectSymptomGroup(group.ID))
			assert.Equal(t, StageResult, d.Stage(), "%s/%s", age.ID, group.ID)
			result, _ := d.Result()
			assert.Equal(t, override.Title, result.Title)
			assert.Nil(t, d.engine)
		}
	}
}

// Single-symptom groups never present a sub-symptom step; multi-symptom
// groups always do unless overridden.
func TestGroupRoutingForEveryPair(t *testing.T) {
	catalog := defaultCatalog(t)
	for _, age := range catalog.AgeGroups() {
		for _, group := range catalog.SymptomGroups() {
			if _, ok := catalog.Override(age.ID, group.ID); ok {
				continue
			}
			d := walkToSymptomGroup(t, catalog, age.ID)
			require.NoError(t, d.SelectSymptomGroup(group.ID))
			if len(group.Symptoms) == 1 {
				assert.Equal(t, StageSymptomQuestions, d.Stage(), "%s/%s", age.ID, group.ID)
				assert.Equal(t, group.Symptoms[0], d.Snapshot().Symptom.Slug)
			} else {
				assert.Equal(t, StageSubSymptom, d.Stage(), "%s/%s", age.ID, group.ID)
				assert.Len(t, d.Snapshot().SubSymptoms, len(group.Symptoms))
			}
		}
	}
}

// Reset from every reachable stage lands on the first emergency question
// with no result, and a second Reset changes nothing.
func TestResetFromEveryStage(t *testing.T) {
	catalog := defaultCatalog(t)
	multi := firstGroup(catalog, func(g triage.SymptomGroup) bool { return len(g.Symptoms) > 1 })
	single := firstGroup(catalog, func(g triage.SymptomGroup) bool { return len(g.Symptoms) == 1 })
	age := firstAgeWithoutOverrides(t, catalog)

	setups := map[Stage]func(d *Dispatcher){
		StageEmergency: func(d *Dispatcher) {
			if catalog.EmergencyCount() > 1 {
				require.NoError(t, d.AnswerEmergency(triage.AnswerNo))
			}
		},
		StageAgeSelect:        func(d *Dispatcher) { answerAllEmergencyNo(t, d, catalog) },
		StageSymptomGroup:     func(d *Dispatcher) { answerAllEmergencyNo(t, d, catalog); require.NoError(t, d.SelectAge(age)) },
		StageSubSymptom:       func(d *Dispatcher) { toGroup(t, d, catalog, age, multi) },
		StageSymptomQuestions: func(d *Dispatcher) { toGroup(t, d, catalog, age, single) },
		StageResult:           func(d *Dispatcher) { require.NoError(t, d.AnswerEmergency(triage.AnswerYes)) },
	}
	for stage, setup := range setups {
		d, err := New(catalog)
		require.NoError(t, err)
		setup(d)
		require.Equal(t, stage, d.Stage())

		d.Reset()
		first := d.Snapshot()
		d.Reset()
		assert.Equal(t, first, d.Snapshot(), "reset from %s is not idempotent", stage)
		assert.Equal(t, StageEmergency, d.Stage())
		assert.Equal(t, 1, first.Emergency.Position)
		_, ok := d.Result()
		assert.False(t, ok)
	}
}

// Walking every answer sequence of every reachable symptom through the
// dispatcher ends in a result within len(questions) answers.
func TestEverySymptomPathTerminatesThroughDispatcher(t *testing.T) {
	catalog := defaultCatalog(t)
	age := firstAgeWithoutOverrides(t, catalog)
	for _, group := range catalog.SymptomGroups() {
		for _, slug := range group.Symptoms {
			symptom, _ := catalog.Symptom(slug)
			var walk func(prefix []triage.Answer)
			walk = func(prefix []triage.Answer) {
				require.LessOrEqual(t, len(prefix), len(symptom.Questions))
				for _, answer := range []triage.Answer{triage.AnswerYes, triage.AnswerNo} {
					d := walkToSymptom(t, catalog, age, group, slug)
					seq := append(append([]triage.Answer(nil), prefix...), answer)
					for _, a := range seq {
						require.NoError(t, d.AnswerSymptomQuestion(a))
					}
					if d.Stage() == StageResult {
						result, ok := d.Result()
						require.True(t, ok)
						require.True(t, result.Tier.Valid())
						assert.Equal(t, slug, d.Source())
						continue
					}
					require.Equal(t, StageSymptomQuestions, d.Stage())
					walk(seq)
				}
			}
			walk(nil)
		}
	}
}

func answerAllEmergencyNo(t *testing.T, d *Dispatcher, catalog *triage.Catalog) {
	t.Helper()
	for i := 0; i < catalog.EmergencyCount(); i++ {
		require.NoError(t, d.AnswerEmergency(triage.AnswerNo))
	}
	require.Equal(t, StageAgeSelect, d.Stage())
}

func walkToSymptomGroup(t *testing.T, catalog *triage.Catalog, age string) *Dispatcher {
	t.Helper()
	d, err := New(catalog)
	require.NoError(t, err)
	answerAllEmergencyNo(t, d, catalog)
	require.NoError(t, d.SelectAge(age))
	return d
}

func toGroup(t *testing.T, d *Dispatcher, catalog *triage.Catalog, age string, group triage.SymptomGroup) {
	t.Helper()
	answerAllEmergencyNo(t, d, catalog)
	require.NoError(t, d.SelectAge(age))
	require.NoError(t, d.SelectSymptomGroup(group.ID))
}

func walkToSymptom(t *testing.T, catalog *triage.Catalog, age string, group triage.SymptomGroup, slug string) *Dispatcher {
	t.Helper()
	d := walkToSymptomGroup(t, catalog, age)
	require.NoError(t, d.SelectSymptomGroup(group.ID))
	if d.Stage() == StageSubSymptom {
		require.NoError(t, d.SelectSubSymptom(slug))
	}
	require.Equal(t, StageSymptomQuestions, d.Stage())
	return d
}

func firstGroup(catalog *triage.Catalog, match func(triage.SymptomGroup) bool) triage.SymptomGroup {
	for _, group := range catalog.SymptomGroups() {
		if match(group) {
			return group
		}
	}
	return triage.SymptomGroup{}
}

func firstAgeWithoutOverrides(t *testing.T, catalog *triage.Catalog) string {
	t.Helper()
	for _, age := range catalog.AgeGroups() {
		overridden := false
		for _, group := range catalog.SymptomGroups() {
			if _, ok := catalog.Override(age.ID, group.ID); ok {
				overridden = true
				break
			}
		}
		if !overridden {
			return age.ID
		}
	}
	t.Fatalf("default catalog has no age group without overrides")
	return ""
}
