package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"cylroute/internal/opt"
)

func counterValue(t *testing.T, status string) float64 {
	t.Helper()
	var m dto.Metric
	if err := PlansTotal.WithLabelValues(status).Write(&m); err != nil {
		t.Fatalf("write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObservePlan(t *testing.T) {
	RegisterDefault()
	RegisterDefault() // idempotent

	before := counterValue(t, "ok")
	ObservePlan(opt.Stats{RouteCalls: 40, RefinePasses: 2, TotalDur: 3 * time.Millisecond})
	if got := counterValue(t, "ok"); got != before+1 {
		t.Fatalf("plans_total: got %v, want %v", got, before+1)
	}

	var h dto.Metric
	if err := RouteCalls.Write(&h); err != nil {
		t.Fatalf("write: %v", err)
	}
	if h.GetHistogram().GetSampleCount() == 0 {
		t.Fatal("route calls not observed")
	}
}

func TestRegistryGathers(t *testing.T) {
	RegisterDefault()
	TuneTrials.WithLabelValues("failed").Inc()
	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "planner_tune_trials_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("planner_tune_trials_total not registered")
	}
}
