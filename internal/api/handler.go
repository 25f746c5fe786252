// Package api exposes the routing and coordination engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/foreman/internal/checkpoint"
	"github.com/nidhogg/foreman/internal/graph"
	"github.com/nidhogg/foreman/internal/history"
	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/router"
	"github.com/nidhogg/foreman/internal/task"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers. History, checkpoints and
// handoff graph are optional: a nil store simply skips persistence.
type Handler struct {
	reg         *registry.Registry
	rt          *router.Router
	orch        *orchestrator.Orchestrator
	hist        *history.Store
	checkpoints *checkpoint.Publisher
	handoffs    *graph.HandoffGraph
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	reg *registry.Registry,
	rt *router.Router,
	orch *orchestrator.Orchestrator,
	hist *history.Store,
	checkpoints *checkpoint.Publisher,
	handoffs *graph.HandoffGraph,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		reg:         reg,
		rt:          rt,
		orch:        orch,
		hist:        hist,
		checkpoints: checkpoints,
		handoffs:    handoffs,
		logger:      logger,
	}
}

// Router builds the chi route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/workers", h.listWorkers)
		r.Get("/workers/{name}", h.getWorker)
		r.Get("/workers/{name}/handoffs", h.getWorkerHandoffs)

		r.Post("/route", h.routeTask)
		r.Post("/workflows", h.runWorkflow)
		r.Get("/workflows/archives", h.listArchives)

		r.Get("/history/routing", h.routingHistory)
		r.Get("/history/workflows", h.workflowHistory)
		r.Get("/checkpoints", h.listCheckpoints)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "foreman"})
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.All())
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	profile, ok := h.reg.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown worker: " + name})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) getWorkerHandoffs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.reg.Has(name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown worker: " + name})
		return
	}
	if h.handoffs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "handoff graph not configured"})
		return
	}
	edges, err := h.handoffs.TopTargets(r.Context(), name, queryInt(r, "limit", 10))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

type routeRequest struct {
	Task    task.Task      `json:"task"`
	Context router.Context `json:"context"`
}

func (h *Handler) routeTask(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	decision := h.rt.Route(req.Task, req.Context)

	if h.hist != nil {
		if err := h.hist.AppendRouting(r.Context(), decision); err != nil {
			h.logger.Error("persist routing decision failed", zap.Error(err))
		}
	}
	if h.handoffs != nil && decision.HandoffRequired {
		err := h.handoffs.RecordHandoff(r.Context(),
			decision.Handoff.FromWorker, decision.Handoff.ToWorker, len(decision.Conflicts))
		if err != nil {
			h.logger.Error("record handoff failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, decision)
}

type workflowRequest struct {
	Task    task.Task `json:"task"`
	Pattern string    `json:"pattern"`
}

func (h *Handler) runWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.orch.RunWorkflow(r.Context(), req.Task, req.Pattern)
	if err != nil {
		// Only configuration problems surface as errors.
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if h.hist != nil {
		if perr := h.hist.AppendWorkflow(r.Context(), *result); perr != nil {
			h.logger.Error("persist workflow result failed", zap.Error(perr))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listArchives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Archives())
}

func (h *Handler) routingHistory(w http.ResponseWriter, r *http.Request) {
	if h.hist == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store not configured"})
		return
	}
	records, err := h.hist.RecentRouting(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) workflowHistory(w http.ResponseWriter, r *http.Request) {
	if h.hist == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store not configured"})
		return
	}
	records, err := h.hist.RecentWorkflows(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	if h.checkpoints == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "checkpoint stream not configured"})
		return
	}
	events, err := h.checkpoints.Recent(r.Context(), int64(queryInt(r, "limit", 50)))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
