package api

import (
	"net/http"
	"time"

	"cylroute/internal/buildinfo"
)

// DebugJSON reports the build and a redacted view of the running config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":           c.API.Port,
			"rateRps":        c.API.RateRPS,
			"rateBurst":      c.API.RateBurst,
			"replayDelayMs":  c.API.ReplayDelayMs,
			"policy":         s.Planner.Policy.String(),
			"maxPasses":      s.Planner.MaxPasses,
			"apiMaxPasses":   c.API.MaxPasses,
			"weights":        s.Planner.Weights,
			"profile":        s.Planner.Profile,
			"tuneTrials":     c.Tune.Trials,
			"tuneWorkers":    c.Tune.Workers,
			"hasDatabaseUrl": c.Store.DatabaseURL != "",
			"hasSqlitePath":  c.Store.SQLitePath != "",
			"hasRedisUrl":    c.API.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
