package intake

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/telemetry"
	"github.com/kingrea/nestguide/internal/triage"
	"github.com/kingrea/nestguide/internal/triage/engine"
)

// Stage names a step of the guided intake.
type Stage string

const (
	StageEmergency        Stage = "emergency-screening"
	StageAgeSelect        Stage = "age-select"
	StageSymptomGroup     Stage = "symptom-group"
	StageSubSymptom       Stage = "sub-symptom"
	StageSymptomQuestions Stage = "symptom-questions"
	StageResult           Stage = "result"
)

// Result sources reported with result_viewed events.
const (
	SourceEmergency      = "emergency"
	SourceOverridePrefix = "age-override:"
)

// Option customizes the dispatcher.
type Option func(*Dispatcher)

// WithRecorder sends interview events to recorder.
func WithRecorder(recorder telemetry.Recorder) Option {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

// WithRegion attaches the region's hotline numbers and guidance to escalated
// results. New fails for ids the catalog does not define.
func WithRegion(id string) Option {
	return func(d *Dispatcher) {
		d.region = id
	}
}

// WithLogger injects a logger for transition diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher is the guided intake state machine for one session. Transitions
// only move forward; Reset returns to the first emergency question. A
// Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	catalog  *triage.Catalog
	recorder telemetry.Recorder
	logger   *zap.Logger
	region   string

	stage     Stage
	index     int
	ageGroup  string
	group     string
	engine    *engine.Engine
	result    triage.Result
	hasResult bool
	source    string
}

// New starts a session against a validated catalog.
func New(catalog *triage.Catalog, opts ...Option) (*Dispatcher, error) {
	if catalog == nil {
		return nil, fmt.Errorf("intake: catalog is required")
	}
	d := &Dispatcher{
		catalog:  catalog,
		recorder: telemetry.Discard,
		logger:   zap.NewNop(),
		stage:    StageEmergency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.region != "" {
		if _, ok := catalog.Region(d.region); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, d.region)
		}
	}
	return d, nil
}

// Stage reports the current stage.
func (d *Dispatcher) Stage() Stage { return d.stage }

// Result returns the decorated terminal result once the interview finished.
func (d *Dispatcher) Result() (triage.Result, bool) {
	if !d.hasResult {
		return triage.Result{}, false
	}
	return d.result.Clone(), true
}

// Source reports where the result came from: "emergency", a symptom slug or
// "age-override:<group>". Empty until a result exists.
func (d *Dispatcher) Source() string { return d.source }

// AnswerEmergency answers the current pre-screening question. "yes" ends the
// interview with that question's result; exhausting the list moves on to age
// selection.
func (d *Dispatcher) AnswerEmergency(answer triage.Answer) error {
	if err := d.expect("AnswerEmergency", StageEmergency); err != nil {
		return err
	}
	if !answer.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAnswer, answer)
	}
	q, ok := d.catalog.EmergencyQuestion(d.index)
	if !ok {
		return fmt.Errorf("intake: emergency question %d out of range", d.index)
	}
	answered := telemetry.EmergencyAnswered(q.ID, string(answer))
	if answer == triage.AnswerYes {
		d.finish(q.Result, SourceEmergency, answered)
		return nil
	}
	if d.index+1 < d.catalog.EmergencyCount() {
		d.index++
	} else {
		d.moveTo(StageAgeSelect)
	}
	d.record(answered)
	return nil
}

// SelectAge records the age group and moves on to symptom-group selection.
func (d *Dispatcher) SelectAge(id string) error {
	if err := d.expect("SelectAge", StageAgeSelect); err != nil {
		return err
	}
	if _, ok := d.catalog.AgeGroup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgeGroup, id)
	}
	d.ageGroup = id
	d.moveTo(StageSymptomGroup)
	d.record(telemetry.AgeSelected(id))
	return nil
}

// SelectSymptomGroup routes the chosen group. An age override ends the
// interview without asking any symptom question; a single-symptom group starts
// that symptom's questions; otherwise the caller picks a sub-symptom.
func (d *Dispatcher) SelectSymptomGroup(id string) error {
	if err := d.expect("SelectSymptomGroup", StageSymptomGroup); err != nil {
		return err
	}
	group, ok := d.catalog.SymptomGroup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSymptomGroup, id)
	}
	override, overridden := d.catalog.Override(d.ageGroup, group.ID)
	var eng *engine.Engine
	if !overridden && len(group.Symptoms) == 1 {
		var err error
		if eng, err = d.startEngine(group.Symptoms[0]); err != nil {
			return err
		}
	}
	d.group = group.ID
	selected := telemetry.SymptomGroupSelected(group.ID)
	switch {
	case overridden:
		d.finish(override, SourceOverridePrefix+group.ID, selected)
		return nil
	case eng != nil:
		d.engine = eng
		d.moveTo(StageSymptomQuestions)
	default:
		d.moveTo(StageSubSymptom)
	}
	d.record(selected)
	return nil
}

// SelectSubSymptom picks one symptom of the selected group and starts its
// questions.
func (d *Dispatcher) SelectSubSymptom(slug string) error {
	if err := d.expect("SelectSubSymptom", StageSubSymptom); err != nil {
		return err
	}
	group, _ := d.catalog.SymptomGroup(d.group)
	if !slices.Contains(group.Symptoms, slug) {
		return fmt.Errorf("%w: %q is not part of group %s", ErrUnknownSymptom, slug, d.group)
	}
	eng, err := d.startEngine(slug)
	if err != nil {
		return err
	}
	d.engine = eng
	d.moveTo(StageSymptomQuestions)
	return nil
}

// AnswerSymptomQuestion answers the active symptom's current question. The
// symptom's terminal result becomes the dispatcher's result.
func (d *Dispatcher) AnswerSymptomQuestion(answer triage.Answer) error {
	if err := d.expect("AnswerSymptomQuestion", StageSymptomQuestions); err != nil {
		return err
	}
	if !answer.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAnswer, answer)
	}
	step, err := d.engine.Answer(answer)
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	slug := d.engine.Slug()
	answered := telemetry.SymptomQuestionAnswered(slug, step.QuestionID, string(answer))
	if step.Done {
		d.finish(step.Result, slug, answered)
		return nil
	}
	d.record(answered)
	return nil
}

// Reset returns the whole interview to the first emergency question. It is
// valid in every stage and idempotent.
func (d *Dispatcher) Reset() {
	if d.stage != StageEmergency || d.index != 0 {
		d.logger.Debug("intake reset", zap.String("from", string(d.stage)))
	}
	d.stage = StageEmergency
	d.index = 0
	d.ageGroup = ""
	d.group = ""
	d.engine = nil
	d.result = triage.Result{}
	d.hasResult = false
	d.source = ""
}

func (d *Dispatcher) expect(op string, stage Stage) error {
	if d.stage != stage {
		return &StageError{Op: op, Stage: d.stage}
	}
	return nil
}

func (d *Dispatcher) startEngine(slug string) (*engine.Engine, error) {
	symptom, ok := d.catalog.Symptom(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymptom, slug)
	}
	eng, err := engine.New(symptom)
	if err != nil {
		return nil, fmt.Errorf("intake: start %s: %w", slug, err)
	}
	return eng, nil
}

// finish enters the result stage, then records pending followed by
// result_viewed.
func (d *Dispatcher) finish(result triage.Result, source string, pending ...telemetry.Event) {
	d.result = d.catalog.Decorate(result, d.region)
	d.hasResult = true
	d.source = source
	d.moveTo(StageResult)
	for _, event := range pending {
		d.record(event)
	}
	d.record(telemetry.ResultViewed(source, string(d.result.Tier)))
}

// record hands event to the recorder. A panicking recorder is logged and
// never reaches the caller.
func (d *Dispatcher) record(event telemetry.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("telemetry recorder failed",
				zap.String("event", event.Name),
				zap.Any("panic", r),
			)
		}
	}()
	d.recorder.Record(event)
}

func (d *Dispatcher) moveTo(stage Stage) {
	d.logger.Debug("intake transition",
		zap.String("from", string(d.stage)),
		zap.String("to", string(stage)),
	)
	d.stage = stage
}
