package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cylroute/internal/metrics"
	"cylroute/internal/model"
	"cylroute/internal/opt"
	"cylroute/internal/store"
)

// PlansHandler handles POST /v1/plans (plan a map) and GET /v1/plans (list).
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/plans" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		s.createPlan(w, r)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit, err := queryInt(r, "limit", 100)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		items, next, err := s.Store.ListPlans(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	var req model.PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.PlansTotal.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	cyls, origin, planner, err := validatePlanRequest(&req, s.Planner, s.Origin, s.Config.API.MaxPasses)
	if err != nil {
		metrics.PlansTotal.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
		return
	}
	res, err := planner.Plan(cyls, origin)
	if err != nil {
		status := problemStatus(err)
		label := "error"
		if status == http.StatusBadRequest {
			label = "invalid"
		}
		metrics.PlansTotal.WithLabelValues(label).Inc()
		writeProblem(w, status, "Planning failed", err.Error(), r.URL.Path)
		return
	}
	if req.Cylinders == nil {
		req.Cylinders = []model.CylinderIn{}
	}
	plan := model.Plan{
		ID:        store.NewID(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
		Policy:    planner.Policy.String(),
		Weights:   planner.Weights,
		Origin:    origin,
		Cylinders: req.Cylinders,
		Order:     res.Order,
		Path:      res.Path,
		Commands:  opt.CommandLines(res.Commands),
		Cost:      res.Cost,
		Score:     res.Score,
		Stats:     res.Stats,
	}
	if err := s.Store.SavePlan(r.Context(), plan); err != nil {
		metrics.PlansTotal.WithLabelValues("error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	metrics.ObservePlan(res.Stats)
	s.Broker.Publish("plans", SSEEvent{Type: "plan.created", Data: map[string]any{
		"id":    plan.ID,
		"cost":  plan.Cost,
		"score": plan.Score,
	}})
	w.Header().Set("Location", "/v1/plans/"+plan.ID)
	writeJSON(w, http.StatusCreated, plan)
}

// PlanByIDHandler handles /v1/plans/{id}, /v1/plans/{id}/commands and the
// /v1/plans/{id}/replay websocket.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/plans/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), parts[0])
	if err != nil {
		writeProblem(w, problemStatus(err), "Plan not found", err.Error(), path)
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, plan)
		return
	}
	switch parts[1] {
	case "commands":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Join(plan.Commands, "\n") + "\n"))
	case "replay":
		s.replayPlan(w, r, plan)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "broker: "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// problemStatus maps domain errors onto HTTP statuses.
func problemStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, opt.ErrUnknownCategory),
		errors.Is(err, opt.ErrNonFinite),
		errors.Is(err, opt.ErrInvalidWeights),
		errors.Is(err, opt.ErrInvalidProfile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
