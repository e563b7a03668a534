package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/telemetry"
	"github.com/kingrea/nestguide/internal/triage"
	"github.com/kingrea/nestguide/internal/triage/intake"
)

// ProtocolVersion is reported by /health so clients can detect API changes.
const ProtocolVersion = "v1"

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Logger is the one-method logger the server writes lifecycle lines to.
type Logger interface {
	Printf(format string, args ...any)
}

// Server exposes triage sessions over HTTP. Each session owns one
// intake.Dispatcher.
type Server struct {
	settings     Settings
	catalog      *triage.Catalog
	recorder     telemetry.Recorder
	logger       Logger
	intakeLogger *zap.Logger
	clock        func() time.Time
	sessions     *registry
	router       chi.Router

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	status     ServerStatus
	startTime  time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithRecorder forwards interview events of every session to recorder.
func WithRecorder(recorder telemetry.Recorder) Option {
	return func(s *Server) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIntakeLogger passes logger to every session's dispatcher.
func WithIntakeLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.intakeLogger = logger
		}
	}
}

// WithClock allows tests to control session expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New prepares a session server for catalog. The default region in settings
// must exist in the catalog.
func New(catalog *triage.Catalog, settings Settings, opts ...Option) (*Server, error) {
	if catalog == nil {
		return nil, fmt.Errorf("server: catalog is required")
	}
	settings.normalize()
	if settings.Region != "" {
		if _, ok := catalog.Region(settings.Region); !ok {
			return nil, fmt.Errorf("server: %w: %q", intake.ErrUnknownRegion, settings.Region)
		}
	}
	s := &Server{
		settings:     settings,
		catalog:      catalog,
		recorder:     telemetry.Discard,
		logger:       nopLogger{},
		intakeLogger: zap.NewNop(),
		clock:        time.Now,
		status:       StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.sessions = newRegistry(settings.SessionTTL, s.clock)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/catalog", s.handleCatalog)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Delete("/", s.handleDelete)
			r.Post("/emergency", s.handleEmergency)
			r.Post("/age", s.handleAge)
			r.Post("/group", s.handleGroup)
			r.Post("/symptom", s.handleSymptom)
			r.Post("/answer", s.handleAnswer)
			r.Post("/reset", s.handleReset)
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Handler returns the router, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves sessions until
// Shutdown. A drained server cannot be started again.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.status == StatusDraining:
		return fmt.Errorf("server: cannot start after shutdown")
	case s.listener != nil:
		return fmt.Errorf("server: already serving on %s", s.listener.Addr())
	}
	ln, err := net.Listen("tcp", s.settings.Address())
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.settings.Address(), err)
	}
	hs := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.httpServer, s.listener = hs, ln
	s.startTime = s.clock()
	s.status = StatusReady
	go s.serve(hs, ln)
	s.logger.Printf("server: catalog v%d on %s (region %q, session ttl %s)",
		s.catalog.Version(), ln.Addr(), s.settings.Region, s.settings.SessionTTL)
	return nil
}

func (s *Server) serve(hs *http.Server, ln net.Listener) {
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("server: serve error: %v", err)
	}
}

// Shutdown waits for in-flight requests, then discards every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}
	s.status = StatusDraining
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.httpServer, s.listener = nil, nil
	if dropped := s.sessions.clear(); dropped > 0 {
		s.logger.Printf("server: discarded %d live session(s)", dropped)
	}
	return nil
}

// Addr is the bound listener address; empty when not serving.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL prefers the bound address so ephemeral ports resolve.
func (s *Server) BaseURL() string {
	if addr := s.Addr(); addr != "" {
		return "http://" + addr
	}
	return s.settings.URL()
}

func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// health reports lifecycle state alongside the live session count.
func (s *Server) health() healthResponse {
	s.mu.RLock()
	status, started := s.status, s.startTime
	s.mu.RUnlock()
	resp := healthResponse{
		Status:         string(status),
		Version:        ProtocolVersion,
		CatalogVersion: s.catalog.Version(),
		Sessions:       s.sessions.len(),
	}
	if !started.IsZero() {
		resp.UptimeSeconds = int64(s.clock().Sub(started).Seconds())
	}
	return resp
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	CatalogVersion int    `json:"catalog_version"`
	Sessions       int    `json:"sessions"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

type catalogResponse struct {
	Version       int                            `json:"version"`
	AgeGroups     []triage.AgeGroup              `json:"age_groups"`
	SymptomGroups []triage.SymptomGroup          `json:"symptom_groups"`
	Severity      map[triage.Tier]triage.Display `json:"severity"`
	Regions       []regionEntry                  `json:"regions,omitempty"`
}

type regionEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type sessionResponse struct {
	ID   string      `json:"id"`
	View intake.View `json:"view"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	resp := catalogResponse{
		Version:       s.catalog.Version(),
		AgeGroups:     s.catalog.AgeGroups(),
		SymptomGroups: s.catalog.SymptomGroups(),
		Severity:      make(map[triage.Tier]triage.Display, len(triage.Tiers)),
	}
	for _, tier := range triage.Tiers {
		if display, ok := s.catalog.DisplayFor(tier); ok {
			resp.Severity[tier] = display
		}
	}
	for _, region := range s.catalog.Regions() {
		resp.Regions = append(resp.Regions, regionEntry{ID: region.ID, Label: region.Label})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createRequest struct {
	Region string `json:"region"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}
	region := s.settings.Region
	if value := strings.TrimSpace(req.Region); value != "" {
		region = value
	}
	d, err := intake.New(s.catalog,
		intake.WithRecorder(s.recorder),
		intake.WithRegion(region),
		intake.WithLogger(s.intakeLogger),
	)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	sess := s.sessions.create(d)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.id, View: d.Snapshot()})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(d *intake.Dispatcher) error { return nil })
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Answer triage.Answer `json:"answer"`
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.withSession(w, r, func(d *intake.Dispatcher) error { return d.AnswerEmergency(req.Answer) })
}

func (s *Server) handleAge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgeGroup string `json:"age_group"`
	}
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.withSession(w, r, func(d *intake.Dispatcher) error { return d.SelectAge(req.AgeGroup) })
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Group string `json:"group"`
	}
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.withSession(w, r, func(d *intake.Dispatcher) error { return d.SelectSymptomGroup(req.Group) })
}

func (s *Server) handleSymptom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
	}
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.withSession(w, r, func(d *intake.Dispatcher) error { return d.SelectSubSymptom(req.Slug) })
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.withSession(w, r, func(d *intake.Dispatcher) error { return d.AnswerSymptomQuestion(req.Answer) })
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(d *intake.Dispatcher) error {
		d.Reset()
		return nil
	})
}

// withSession runs op under the session lock and replies with the resulting
// view. A failed op leaves the dispatcher unchanged.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, op func(*intake.Dispatcher) error) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := op(sess.dispatcher); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: sess.id, View: sess.dispatcher.Snapshot()})
}

// decodeBody reads a size-limited JSON body into dst. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if r.Body == nil {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "empty body")
		return false
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "unable to read body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "empty body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, intake.ErrWrongStage):
		return http.StatusConflict
	case errors.Is(err, intake.ErrUnknownAgeGroup),
		errors.Is(err, intake.ErrUnknownSymptomGroup),
		errors.Is(err, intake.ErrUnknownSymptom),
		errors.Is(err, intake.ErrInvalidAnswer),
		errors.Is(err, intake.ErrUnknownRegion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
