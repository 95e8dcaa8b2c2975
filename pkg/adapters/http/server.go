package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine defines what the HTTP server needs from the questionnaire engine.
// *arbor.Engine satisfies it.
type Engine interface {
	ports.GroupLoader
	Evaluate(ctx context.Context, groupID string, answers domain.Answers, page int) (flow.Result, error)
	OpenSession(ctx context.Context, sessionID string, groupIDs ...string) (*session.Session, error)
	Watch(ctx context.Context) (<-chan string, error)
	Sessions() *session.Manager
}

// Server serves the Arbor REST API.
type Server struct {
	Engine  Engine
	logger  *slog.Logger
	metrics http.Handler
	spec    *openapi3.T
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics mounts a metrics handler on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// LoadSpec parses the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler for the engine. Requests are
// validated against the embedded OpenAPI document before they reach a route.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{Engine: engine, logger: logging.NewNop(), spec: spec}
	for _, opt := range opts {
		opt(s)
	}

	validate, err := requestValidator(spec, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)

		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/events", s.SubscribeEvents)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.ListGroups)
			r.Get("/{groupID}", s.GetGroup)
			r.Post("/{groupID}/evaluate", s.EvaluateGroup)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.StartSession)
			r.Get("/{sessionID}", s.GetSession)
			r.Put("/{sessionID}/answers", s.SetAnswers)
			r.Post("/{sessionID}/navigate", s.Navigate)
		})
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "arbor-http",
		"version":     arbor.Version,
		"api_version": apiVersion,
	})
}

// ListGroups handles GET /groups.
func (s *Server) ListGroups(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"groups": ids})
}

// GetGroup handles GET /groups/{groupID}.
func (s *Server) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.LoadGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

// EvaluateRequest is the body of POST /groups/{groupID}/evaluate.
type EvaluateRequest struct {
	Answers domain.Answers `json:"answers"`
	Page    int            `json:"page"`
}

// EvaluateGroup handles POST /groups/{groupID}/evaluate.
func (s *Server) EvaluateGroup(w http.ResponseWriter, r *http.Request) {
	var body EvaluateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Page == 0 {
		body.Page = 1
	}
	res, err := s.Engine.Evaluate(r.Context(), chi.URLParam(r, "groupID"), body.Answers, body.Page)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	SessionID string   `json:"session_id"`
	Groups    []string `json:"groups"`
}

// StartSession handles POST /sessions. A stored session with the same id is
// resumed instead.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartSessionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}
	sess, err := s.Engine.OpenSession(r.Context(), body.SessionID, body.Groups...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("session started", "session_id", body.SessionID, "groups", body.Groups)
	s.writeJSON(w, http.StatusCreated, sess.View())
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.open(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.View())
}

// AnswersRequest is the body of PUT /sessions/{sessionID}/answers.
// Keys are question identifiers of the current group.
type AnswersRequest struct {
	Answers map[string]any `json:"answers"`
}

// SetAnswers handles PUT /sessions/{sessionID}/answers. Answers are applied
// in identifier order and saved together. The session lock is held for the
// whole request, so concurrent writers are serialized.
func (s *Server) SetAnswers(w http.ResponseWriter, r *http.Request) {
	var body AnswersRequest
	if !s.decode(w, r, &body) {
		return
	}

	keys := make([]string, 0, len(body.Answers))
	for k := range body.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	view, err := s.locked(r, func(ctx context.Context, sess *session.Session) (session.View, error) {
		for _, k := range keys {
			if _, err := sess.SetAnswer(ctx, k, body.Answers[k]); err != nil {
				return session.View{}, err
			}
		}
		if err := sess.Save(ctx); err != nil {
			return session.View{}, err
		}
		return sess.View(), nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// NavigateRequest is the body of POST /sessions/{sessionID}/navigate.
type NavigateRequest struct {
	Direction string `json:"direction"`
}

// Navigate handles POST /sessions/{sessionID}/navigate.
func (s *Server) Navigate(w http.ResponseWriter, r *http.Request) {
	var body NavigateRequest
	if !s.decode(w, r, &body) {
		return
	}
	view, err := s.locked(r, func(ctx context.Context, sess *session.Session) (session.View, error) {
		if body.Direction == "backward" {
			return sess.Backward(ctx)
		}
		return sess.Forward(ctx)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// SubscribeEvents handles GET /events (SSE). It streams the id of every
// group that changes on disk.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.Engine.Watch(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: group\ndata: %s\n\n", id)
			flusher.Flush()
		}
	}
}

func (s *Server) open(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.Engine.OpenSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

// locked opens the session of the request and runs fn while holding its lock.
func (s *Server) locked(r *http.Request, fn func(context.Context, *session.Session) (session.View, error)) (session.View, error) {
	id := chi.URLParam(r, "sessionID")
	var view session.View
	err := s.Engine.Sessions().WithLock(r.Context(), id, func(ctx context.Context) error {
		sess, err := s.Engine.OpenSession(ctx, id)
		if err != nil {
			return err
		}
		view, err = fn(ctx, sess)
		return err
	})
	return view, err
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var (
		missing *domain.ValidationError
		typeErr *domain.AnswerTypeError
		status  int
	)
	switch {
	case errors.As(err, &missing):
		status = http.StatusUnprocessableEntity
		body.Missing = missing.Missing
	case errors.As(err, &typeErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPersistence):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
