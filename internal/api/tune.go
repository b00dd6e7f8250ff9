package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"cylroute/internal/metrics"
	"cylroute/internal/model"
	"cylroute/internal/opt"
	"cylroute/internal/store"
	"cylroute/internal/tune"
)

// progressEvery is how many finished trials pass between progress saves.
const progressEvery = 25

const heartbeatEvery = 15 * time.Second

func tuneTopic(id string) string { return "tune:" + id }

// TuneHandler handles POST /v1/tune: it starts a weight search in the
// background and answers 202 with the run id.
func (s *Server) TuneHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/tune" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.TuneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	maps, policy, passes, err := validateTuneRequest(&req, s.Planner.MaxPasses, s.Config.API.MaxPasses)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid tune request", err.Error(), r.URL.Path)
		return
	}
	trials, workers, seed := req.Trials, req.Workers, req.Seed
	if trials == 0 {
		trials = s.Config.Tune.Trials
	}
	if workers == 0 {
		workers = s.Config.Tune.Workers
	}
	if seed == 0 {
		seed = s.Config.Tune.Seed
	}
	run := model.TuneRun{
		ID:        store.NewID(),
		Status:    model.TuneRunning,
		CreatedAt: time.Now().UTC(),
		Seed:      seed,
		Trials:    trials,
	}
	if err := s.Store.SaveTuneRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save tune run failed", err.Error(), r.URL.Path)
		return
	}
	s.startTune(run, maps, tune.Options{
		Trials:    trials,
		Workers:   workers,
		Seed:      seed,
		Origin:    s.Origin,
		Profile:   s.Planner.Profile,
		Policy:    policy,
		MaxPasses: passes,
	})
	w.Header().Set("Location", "/v1/tune/"+run.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": run.ID, "status": run.Status})
}

func trialModel(t tune.Trial) model.TuneTrial {
	out := model.TuneTrial{Index: t.Index, Weights: t.Weights, AvgScore: t.AvgScore}
	if t.Err != nil {
		out.Error = t.Err.Error()
	}
	return out
}

func (s *Server) startTune(run model.TuneRun, maps [][]opt.Cylinder, opts tune.Options) {
	topic := tuneTopic(run.ID)
	var mu sync.Mutex
	opts.OnTrial = func(t tune.Trial) {
		status := "ok"
		if !t.OK() {
			status = "failed"
		}
		metrics.TuneTrials.WithLabelValues(status).Inc()

		mu.Lock()
		run.Completed++
		if !t.OK() {
			run.Failed++
		} else if run.Best == nil || t.AvgScore > run.Best.AvgScore {
			best := trialModel(t)
			run.Best = &best
		}
		snap := run
		mu.Unlock()

		data := map[string]any{
			"index":     t.Index,
			"weights":   t.Weights,
			"avgScore":  t.AvgScore,
			"completed": snap.Completed,
			"failed":    snap.Failed,
		}
		if t.Err != nil {
			data["error"] = t.Err.Error()
		}
		s.Broker.Publish(topic, SSEEvent{Type: "tune.trial", Data: data})
		if snap.Completed%progressEvery == 0 {
			if err := s.Store.SaveTuneRun(s.ctx, snap); err != nil {
				log.Printf("tune %s: save progress: %v", run.ID, err)
			}
		}
	}

	s.wg.Add(1)
	metrics.TuneRunsActive.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.TuneRunsActive.Dec()

		res, err := tune.Search(s.ctx, maps, opts)
		if err != nil {
			log.Printf("tune %s: %v", run.ID, err)
		}
		mu.Lock()
		final := run
		mu.Unlock()
		now := time.Now().UTC()
		final.FinishedAt = &now
		final.Status = model.TuneCompleted
		if res.Canceled {
			final.Status = model.TuneCanceled
		}
		final.Completed = len(res.Trials)
		final.Failed = res.Failed()
		final.Results = make([]model.TuneTrial, len(res.Trials))
		for i, t := range res.Trials {
			final.Results[i] = trialModel(t)
		}
		final.Best = nil
		if best, ok := res.Best(); ok {
			b := trialModel(best)
			final.Best = &b
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.SaveTuneRun(ctx, final); err != nil {
			log.Printf("tune %s: save result: %v", run.ID, err)
		}
		log.Printf("tune %s: %s, %d trials, %d failed", run.ID, final.Status, final.Completed, final.Failed)
		s.Broker.Publish(topic, SSEEvent{Type: "tune.completed", Data: completedData(final)})
	}()
}

func completedData(run model.TuneRun) map[string]any {
	data := map[string]any{
		"id":        run.ID,
		"status":    run.Status,
		"completed": run.Completed,
		"failed":    run.Failed,
	}
	if run.Best != nil {
		data["best"] = run.Best
	}
	return data
}

// TuneByIDHandler handles GET /v1/tune/{id} and the SSE stream at
// /v1/tune/{id}/events/stream.
func (s *Server) TuneByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/tune/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		run, err := s.Store.GetTuneRun(r.Context(), id)
		if err != nil {
			writeProblem(w, problemStatus(err), "Tune run not found", err.Error(), path)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		s.streamTune(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func writeEvent(w http.ResponseWriter, typ string, data any) {
	b, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\n", typ)
	fmt.Fprintf(w, "data: %s\n\n", b)
}

// streamTune relays trial events until the run completes or the client leaves.
func (s *Server) streamTune(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	// subscribe before reading the run so the completion event cannot slip by
	topic := tuneTopic(id)
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	run, err := s.Store.GetTuneRun(r.Context(), id)
	if err != nil {
		writeProblem(w, problemStatus(err), "Tune run not found", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	writeEvent(w, "tune.status", map[string]any{"id": run.ID, "status": run.Status, "completed": run.Completed, "trials": run.Trials})
	flusher.Flush()
	if run.Status != model.TuneRunning {
		writeEvent(w, "tune.completed", completedData(run))
		flusher.Flush()
		return
	}

	notify := r.Context().Done()
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-notify:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, evt.Type, evt.Data)
			flusher.Flush()
			if evt.Type == "tune.completed" {
				return
			}
		case <-heartbeat.C:
			// a full subscriber buffer may have dropped the completion event
			if run, err := s.Store.GetTuneRun(r.Context(), id); err == nil && run.Status != model.TuneRunning {
				writeEvent(w, "tune.completed", completedData(run))
				flusher.Flush()
				return
			}
			writeEvent(w, "heartbeat", map[string]any{"id": id, "ts": time.Now().UTC().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}
