// Package httpapi exposes the run trigger, reporting endpoints and the
// Telegram webhook over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsDigest/internal/approval"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
)

const (
	historyLimit        = 20
	runsLimit           = 20
	defaultArticleLimit = 50
	maxArticleLimit     = 200
	readTimeout         = 5 * time.Second
)

// Deps wires the server to the application core.
type Deps struct {
	Store    ports.Store
	Trigger  ports.RunTrigger
	Workflow *approval.Workflow
	Cooldown *approval.Cooldown
	Secret   string
	Logger   *slog.Logger
}

// Server serves the HTTP surface.
type Server struct {
	store    ports.Store
	trigger  ports.RunTrigger
	workflow *approval.Workflow
	cooldown *approval.Cooldown
	secret   string
	log      *slog.Logger
}

// New builds a Server. A nil cooldown gets the default window.
func New(deps Deps) *Server {
	cooldown := deps.Cooldown
	if cooldown == nil {
		cooldown = approval.NewCooldown(0)
	}
	return &Server{
		store:    deps.Store,
		trigger:  deps.Trigger,
		workflow: deps.Workflow,
		cooldown: cooldown,
		secret:   deps.Secret,
		log:      logging.OrDiscard(deps.Logger),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/agent/trigger", s.handleTrigger)
		r.Get("/agent/status", s.handleStatus)
		r.Get("/agent/history", s.handleHistory)
		r.Get("/agent/runs", s.handleRuns)
		r.Get("/agent/articles", s.handleArticles)
		r.Post("/telegram/webhook", s.handleWebhook)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type digestSummary struct {
	RunID     string              `json:"run_id"`
	Status    domain.DigestStatus `json:"status"`
	Items     int                 `json:"items"`
	Stats     domain.Stats        `json:"stats"`
	CreatedAt time.Time           `json:"created_at"`
	SentAt    *time.Time          `json:"sent_at,omitempty"`
}

func summarize(d domain.Digest) digestSummary {
	return digestSummary{
		RunID:     d.RunID,
		Status:    d.Status,
		Items:     len(d.Items),
		Stats:     d.Stats,
		CreatedAt: d.CreatedAt,
		SentAt:    d.SentAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	runID, err := s.trigger.Trigger(r.Context(), domain.OriginAPI)
	switch {
	case errors.Is(err, ports.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		s.log.Error("trigger run", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not start run"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "run_id": runID})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	resp := struct {
		LastRun       *domain.RunRecord `json:"last_run"`
		PendingDigest *digestSummary    `json:"pending_digest"`
	}{}

	run, err := s.store.LatestRun(ctx)
	switch {
	case err == nil:
		resp.LastRun = &run
	case !errors.Is(err, ports.ErrNotFound):
		s.serverError(w, "load latest run", err)
		return
	}

	pending, err := s.store.LatestDigest(ctx, domain.DigestPending)
	switch {
	case err == nil:
		summary := summarize(pending)
		resp.PendingDigest = &summary
	case !errors.Is(err, ports.ErrNotFound):
		s.serverError(w, "load pending digest", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	digests, err := s.store.ListDigests(ctx, historyLimit)
	if err != nil {
		s.serverError(w, "list digests", err)
		return
	}
	out := make([]digestSummary, 0, len(digests))
	for _, d := range digests {
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"digests": out, "count": len(out)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	runs, err := s.store.ListRuns(ctx, runsLimit)
	if err != nil {
		s.serverError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	limit := clampInt(r.URL.Query().Get("limit"), defaultArticleLimit, maxArticleLimit)

	var category domain.Category
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category = domain.ParseCategory(raw)
		if !strings.EqualFold(raw, string(category)) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown category " + raw})
			return
		}
	}

	items, err := s.store.RecentItems(ctx, limit, category)
	if err != nil {
		s.serverError(w, "list articles", err)
		return
	}
	if items == nil {
		items = []domain.ValidatedItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": items, "count": len(items)})
}

// handleWebhook always acknowledges so the bot API does not redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	chatID, text, ok, err := telegram.ParseUpdate(r.Body)
	if err != nil {
		s.log.Debug("ignore webhook payload", "error", err)
		return
	}
	if !ok || s.workflow == nil {
		return
	}
	if err := s.workflow.Handle(r.Context(), chatID, text, s.cooldown); err != nil {
		s.log.Error("handle command", "chat_id", chatID, "error", err)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	want := "Bearer " + s.secret
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: op + " failed"})
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
