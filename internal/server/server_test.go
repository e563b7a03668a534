package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/nestguide/internal/config"
	"github.com/kingrea/nestguide/internal/telemetry"
	"github.com/kingrea/nestguide/internal/triage"
	"github.com/kingrea/nestguide/internal/triage/intake"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t      *testing.T
	server *Server
	ts     *httptest.Server
}

func newHarness(t *testing.T, settings Settings, opts ...Option) *harness {
	t.Helper()
	catalog, err := triage.DefaultCatalog()
	require.NoError(t, err)
	srv, err := New(catalog, settings, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, server: srv, ts: ts}
}

func (h *harness) do(method, path, body string) (int, []byte) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, strings.NewReader(body))
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.ts.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, buf.Bytes()
}

func (h *harness) session(method, path, body string, wantStatus int) sessionResponse {
	h.t.Helper()
	status, raw := h.do(method, path, body)
	require.Equal(h.t, wantStatus, status, "body: %s", raw)
	var resp sessionResponse
	require.NoError(h.t, json.Unmarshal(raw, &resp))
	return resp
}

func (h *harness) errorFor(method, path, body string, wantStatus int) string {
	h.t.Helper()
	status, raw := h.do(method, path, body)
	require.Equal(h.t, wantStatus, status, "body: %s", raw)
	var resp map[string]string
	require.NoError(h.t, json.Unmarshal(raw, &resp))
	return resp["error"]
}

func (h *harness) create(body string) string {
	h.t.Helper()
	resp := h.session(http.MethodPost, "/sessions", body, http.StatusCreated)
	require.NotEmpty(h.t, resp.ID)
	require.Equal(h.t, intake.StageEmergency, resp.View.Stage)
	return resp.ID
}

func (h *harness) passScreening(id string) {
	h.t.Helper()
	var resp sessionResponse
	for resp.View.Stage != intake.StageAgeSelect {
		resp = h.session(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"no"}`, http.StatusOK)
	}
}

func TestFullInterviewOverHTTP(t *testing.T) {
	h := newHarness(t, Settings{})
	id := h.create("")
	h.passScreening(id)

	resp := h.session(http.MethodPost, "/sessions/"+id+"/age", `{"age_group":"child-3-12y"}`, http.StatusOK)
	assert.Equal(t, intake.StageSymptomGroup, resp.View.Stage)

	resp = h.session(http.MethodPost, "/sessions/"+id+"/group", `{"group":"fever"}`, http.StatusOK)
	require.Equal(t, intake.StageSymptomQuestions, resp.View.Stage)
	require.NotNil(t, resp.View.Symptom)
	assert.Equal(t, "q1", resp.View.Symptom.Question.ID)

	h.session(http.MethodPost, "/sessions/"+id+"/answer", `{"answer":"yes"}`, http.StatusOK)
	resp = h.session(http.MethodPost, "/sessions/"+id+"/answer", `{"answer":"yes"}`, http.StatusOK)
	require.Equal(t, intake.StageResult, resp.View.Stage)
	require.NotNil(t, resp.View.Result)
	assert.Equal(t, triage.TierHotline, resp.View.Result.Result.Tier)
	assert.Equal(t, "Call the advice line today", resp.View.Result.Result.Title)
	assert.Equal(t, "fever", resp.View.Result.Source)

	again := h.session(http.MethodGet, "/sessions/"+id, "", http.StatusOK)
	assert.Equal(t, resp.View, again.View)
}

func TestSubSymptomRouteOverHTTP(t *testing.T) {
	h := newHarness(t, Settings{})
	id := h.create("{}")
	h.passScreening(id)
	h.session(http.MethodPost, "/sessions/"+id+"/age", `{"age_group":"child-3-12y"}`, http.StatusOK)
	resp := h.session(http.MethodPost, "/sessions/"+id+"/group", `{"group":"breathing"}`, http.StatusOK)
	require.Equal(t, intake.StageSubSymptom, resp.View.Stage)
	require.Len(t, resp.View.SubSymptoms, 2)

	resp = h.session(http.MethodPost, "/sessions/"+id+"/symptom", `{"slug":"cough"}`, http.StatusOK)
	assert.Equal(t, intake.StageSymptomQuestions, resp.View.Stage)
	assert.Equal(t, "cough", resp.View.Symptom.Slug)
}

func TestErrorStatusMapping(t *testing.T) {
	h := newHarness(t, Settings{})
	id := h.create("")
	base := "/sessions/" + id

	msg := h.errorFor(http.MethodPost, base+"/age", `{"age_group":"child-3-12y"}`, http.StatusConflict)
	assert.Contains(t, msg, "SelectAge")
	h.errorFor(http.MethodPost, base+"/emergency", `{"answer":"maybe"}`, http.StatusBadRequest)
	h.errorFor(http.MethodPost, base+"/emergency", `{}`, http.StatusBadRequest)
	h.errorFor(http.MethodPost, base+"/emergency", `{"answer":`, http.StatusBadRequest)
	h.errorFor(http.MethodPost, base+"/emergency", "", http.StatusBadRequest)

	resp := h.session(http.MethodGet, base, "", http.StatusOK)
	assert.Equal(t, intake.StageEmergency, resp.View.Stage)
	assert.Equal(t, 1, resp.View.Emergency.Position, "failed calls must not move the interview")

	h.passScreening(id)
	h.errorFor(http.MethodPost, base+"/age", `{"age_group":"teenager"}`, http.StatusBadRequest)
	h.session(http.MethodPost, base+"/age", `{"age_group":"child-3-12y"}`, http.StatusOK)
	h.errorFor(http.MethodPost, base+"/group", `{"group":"ears"}`, http.StatusBadRequest)
	h.session(http.MethodPost, base+"/group", `{"group":"skin"}`, http.StatusOK)
	h.errorFor(http.MethodPost, base+"/symptom", `{"slug":"fever"}`, http.StatusBadRequest)

	h.errorFor(http.MethodGet, "/sessions/does-not-exist", "", http.StatusNotFound)
	h.errorFor(http.MethodPost, "/sessions/does-not-exist/reset", "", http.StatusNotFound)
	h.errorFor(http.MethodPost, "/sessions", `{"region":"mars"}`, http.StatusBadRequest)
}

func TestOversizeBodyIsRejected(t *testing.T) {
	h := newHarness(t, Settings{MaxBodyBytes: 16})
	id := h.create("")
	body := `{"answer":"no","padding":"` + strings.Repeat("x", 64) + `"}`
	h.errorFor(http.MethodPost, "/sessions/"+id+"/emergency", body, http.StatusRequestEntityTooLarge)
}

func TestResetAndDelete(t *testing.T) {
	h := newHarness(t, Settings{})
	id := h.create("")
	h.session(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"yes"}`, http.StatusOK)

	resp := h.session(http.MethodPost, "/sessions/"+id+"/reset", "", http.StatusOK)
	assert.Equal(t, intake.StageEmergency, resp.View.Stage)
	assert.Nil(t, resp.View.Result)

	status, _ := h.do(http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	h.errorFor(http.MethodGet, "/sessions/"+id, "", http.StatusNotFound)
	h.errorFor(http.MethodDelete, "/sessions/"+id, "", http.StatusNotFound)
}

func TestSessionsExpireAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	h := newHarness(t, Settings{SessionTTL: time.Minute}, WithClock(clock.Now))
	id := h.create("")

	clock.Advance(50 * time.Second)
	h.session(http.MethodGet, "/sessions/"+id, "", http.StatusOK)
	clock.Advance(50 * time.Second)
	h.session(http.MethodGet, "/sessions/"+id, "", http.StatusOK)

	clock.Advance(2 * time.Minute)
	h.errorFor(http.MethodGet, "/sessions/"+id, "", http.StatusNotFound)
	assert.Equal(t, 0, h.server.sessions.len())
}

func TestRegionDecoratesEscalatedResults(t *testing.T) {
	h := newHarness(t, Settings{Region: "de"})

	id := h.create(`{"region":"uk"}`)
	resp := h.session(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"yes"}`, http.StatusOK)
	require.NotNil(t, resp.View.Result)
	assert.Equal(t, "999", resp.View.Result.Result.Hotline)

	id = h.create("")
	resp = h.session(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"yes"}`, http.StatusOK)
	assert.Equal(t, "112", resp.View.Result.Result.Hotline)
	assert.NotEmpty(t, resp.View.Result.Result.RegionalGuidance)
}

func TestNewRejectsUnknownDefaultRegion(t *testing.T) {
	catalog, err := triage.DefaultCatalog()
	require.NoError(t, err)
	_, err = New(catalog, Settings{Region: "mars"})
	require.ErrorIs(t, err, intake.ErrUnknownRegion)
	_, err = New(nil, Settings{})
	require.Error(t, err)
}

func TestSessionsRecordTelemetry(t *testing.T) {
	var (
		mu     sync.Mutex
		events []telemetry.Event
	)
	recorder := telemetry.RecorderFunc(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	h := newHarness(t, Settings{}, WithRecorder(recorder))
	id := h.create("")
	h.session(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"yes"}`, http.StatusOK)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.EventEmergencyAnswered, events[0].Name)
	assert.Equal(t, telemetry.EventResultViewed, events[1].Name)
	assert.Equal(t, "emergency", events[1].Fields["source"])
	for _, e := range events {
		assert.NotContains(t, e.Fields, "session_id")
	}
}

func TestConcurrentRequestsOnOneSession(t *testing.T) {
	h := newHarness(t, Settings{})
	id := h.create("")
	var wg sync.WaitGroup
	statuses := make(chan int, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			status, _ := h.do(http.MethodPost, "/sessions/"+id+"/reset", "")
			statuses <- status
		}()
		go func() {
			defer wg.Done()
			status, _ := h.do(http.MethodPost, "/sessions/"+id+"/emergency", `{"answer":"no"}`)
			statuses <- status
		}()
	}
	wg.Wait()
	close(statuses)
	for status := range statuses {
		// Answers after the screening was exhausted by other requests conflict.
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, status)
	}
}

func TestHealthAndCatalog(t *testing.T) {
	h := newHarness(t, Settings{})
	h.create("")

	status, raw := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	var health healthResponse
	require.NoError(t, json.Unmarshal(raw, &health))
	assert.Equal(t, ProtocolVersion, health.Version)
	assert.Equal(t, 1, health.Sessions)
	assert.Equal(t, string(StatusStarting), health.Status)

	status, raw = h.do(http.MethodGet, "/catalog", "")
	require.Equal(t, http.StatusOK, status)
	var catalog catalogResponse
	require.NoError(t, json.Unmarshal(raw, &catalog))
	assert.Len(t, catalog.Severity, len(triage.Tiers))
	assert.NotEmpty(t, catalog.AgeGroups)
	assert.NotEmpty(t, catalog.SymptomGroups)
	assert.NotEmpty(t, catalog.Regions)

	h.errorFor(http.MethodPost, "/health", "", http.StatusMethodNotAllowed)
	h.errorFor(http.MethodGet, "/nowhere", "", http.StatusNotFound)
}

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *lineLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestStartAndShutdown(t *testing.T) {
	catalog, err := triage.DefaultCatalog()
	require.NoError(t, err)
	logs := &lineLogger{}
	srv, err := New(catalog, Settings{Host: "127.0.0.1", Port: 0}, WithLogger(logs))
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, StatusReady, srv.Status())
	require.Error(t, srv.Start(context.Background()))
	assert.Contains(t, logs.joined(), "catalog v1 on "+srv.Addr())

	resp, err := http.Post(srv.BaseURL()+"/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, srv.health().Sessions)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, StatusDraining, srv.Status())
	assert.Empty(t, srv.Addr())
	assert.Equal(t, 0, srv.health().Sessions)
	assert.Contains(t, logs.joined(), "discarded 1 live session(s)")

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after shutdown")
	require.NoError(t, srv.Shutdown(ctx))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Region = " uk "
	cfg.Server.Port = 9090
	settings := SettingsFromConfig(cfg)
	assert.Equal(t, "uk", settings.Region)
	assert.Equal(t, "127.0.0.1:9090", settings.Address())
	assert.Equal(t, "http://127.0.0.1:9090", settings.URL())
	assert.Equal(t, 30*time.Minute, settings.SessionTTL)

	empty := SettingsFromConfig(nil)
	assert.Equal(t, DefaultHost, empty.Host)
	assert.Equal(t, DefaultMaxBodyBytes, empty.MaxBodyBytes)
}
