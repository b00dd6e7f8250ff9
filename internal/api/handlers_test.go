package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cylroute/internal/config"
	"cylroute/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const lineMap = `{"name":"line","cylinders":[{"x":3,"y":0,"category":1},{"x":6,"y":0,"category":2},{"x":9,"y":0,"category":3}]}`

func postPlan(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, model.Plan) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	var plan model.Plan
	if rr.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plan))
	}
	return rr, plan
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPlanCreateGetList(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	rr, plan := postPlan(t, h, lineMap)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "/v1/plans/"+plan.ID, rr.Header().Get("Location"))
	assert.Equal(t, []int{0, 1, 2}, plan.Order)
	assert.Equal(t, "nearest", plan.Policy)
	require.NotEmpty(t, plan.Commands)
	assert.Equal(t, "FINISH", plan.Commands[len(plan.Commands)-1])
	assert.Greater(t, plan.Score, 0.0)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Plan
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, plan.Path, got.Path)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID+"/commands", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, strings.Join(plan.Commands, "\n")+"\n", rr.Body.String())
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Items      []model.PlanSummary `json:"items"`
		NextCursor string              `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, plan.ID, list.Items[0].ID)
	assert.Equal(t, 3, list.Items[0].Cylinders)
	assert.Empty(t, list.NextCursor)
}

func TestPlanEmptyMap(t *testing.T) {
	s := newTestServer(t)
	rr, plan := postPlan(t, s.Routes(), `{"cylinders":[]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Empty(t, plan.Order)
	assert.Len(t, plan.Path, 1)
	assert.Equal(t, []string{"FINISH"}, plan.Commands)
	assert.Zero(t, plan.Score)
}

func TestPlanRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	cases := map[string]string{
		"malformed":       `{"cylinders":`,
		"unknown field":   `{"cylinders":[],"robots":2}`,
		"bad category":    `{"cylinders":[{"x":1,"y":1,"category":7}]}`,
		"bad weights":     `{"cylinders":[],"weights":{"fuel":-1,"time":1,"value":0}}`,
		"bad policy":      `{"cylinders":[],"policy":"sideways"}`,
		"negative passes": `{"cylinders":[],"maxPasses":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr, _ := postPlan(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/plans", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPlanOverrides(t *testing.T) {
	s := newTestServer(t)
	body := `{"cylinders":[{"x":3,"y":0,"category":1}],"origin":{"x":1,"y":1},"weights":{"fuel":1,"time":0,"value":0},"policy":"first"}`
	rr, plan := postPlan(t, s.Routes(), body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "first", plan.Policy)
	assert.Equal(t, 1.0, plan.Weights.Fuel)
	assert.Equal(t, 1.0, plan.Origin.X)
	assert.Equal(t, plan.Origin, plan.Path[0])
}

func TestReplayWebsocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/plans", "application/json", strings.NewReader(lineMap))
	require.NoError(t, err)
	var plan model.Plan
	require.NoError(t, json.NewDecoder(res.Body).Decode(&plan))
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/plans/" + plan.ID + "/replay?delayMs=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var steps []model.ReplayFrame
	for {
		var f model.ReplayFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == "complete" {
			break
		}
		require.Equal(t, "step", f.Type)
		require.NotNil(t, f.Step)
		steps = append(steps, f)
	}
	require.Len(t, steps, len(plan.Path))
	last := steps[len(steps)-1].Step
	assert.InDelta(t, plan.Score, last.Value, 1e-9)
	assert.Equal(t, plan.Path[len(plan.Path)-1], last.Point)
}

func TestReplayRejectsBadDelay(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	rr, plan := postPlan(t, h, lineMap)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID+"/replay?delayMs=-3", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func tuneBody(trials int) []byte {
	req := model.TuneRequest{
		Maps: [][]model.CylinderIn{
			{{X: 3, Y: 0, Category: 1}, {X: 6, Y: 4, Category: 3}},
			{{X: 10, Y: 10, Category: 2}},
		},
		Trials:  trials,
		Workers: 2,
		Seed:    7,
	}
	b, _ := json.Marshal(req)
	return b
}

func waitTune(t *testing.T, h http.Handler, id string) model.TuneRun {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tune/"+id, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var run model.TuneRun
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
		if run.Status != model.TuneRunning {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("tune run %s did not finish", id)
	return model.TuneRun{}
}

func TestTuneRunCompletes(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tune", bytes.NewReader(tuneBody(10))))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var accepted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.Equal(t, model.TuneRunning, accepted.Status)

	run := waitTune(t, h, accepted.ID)
	assert.Equal(t, model.TuneCompleted, run.Status)
	assert.Equal(t, 10, run.Completed)
	assert.Zero(t, run.Failed)
	require.Len(t, run.Results, 10)
	require.NotNil(t, run.Best)
	require.NotNil(t, run.FinishedAt)
	for _, tr := range run.Results {
		assert.LessOrEqual(t, tr.AvgScore, run.Best.AvgScore)
	}
}

func TestTuneRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	for _, body := range []string{
		`{"maps":[]}`,
		`{"maps":[[{"x":1,"y":1,"category":0}]]}`,
		`{"maps":[[]],"workers":1000}`,
		`{"maps":[[]],"policy":"sideways"}`,
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tune", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tune/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTuneEventStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/tune", "application/json", bytes.NewReader(tuneBody(20)))
	require.NoError(t, err)
	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&accepted))
	res.Body.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	stream, err := client.Get(ts.URL + "/v1/tune/" + accepted.ID + "/events/stream")
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	var events []string
	sc := bufio.NewScanner(stream.Body)
	for sc.Scan() {
		if ev, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, ev)
		}
	}
	// the handler ends the stream after completion
	require.NoError(t, sc.Err())
	require.NotEmpty(t, events)
	assert.Equal(t, "tune.status", events[0])
	assert.Equal(t, "tune.completed", events[len(events)-1])

	_, _ = io.Copy(io.Discard, stream.Body)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	rr, _ := postPlan(t, h, lineMap)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "planner_plans_total")
}

func TestDebugJSON(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.DebugJSON(rr, httptest.NewRequest(http.MethodGet, "/debug/vars.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body, "build")
	cfg := body["config"].(map[string]any)
	assert.Equal(t, "nearest", cfg["policy"])
	assert.Equal(t, false, cfg["hasRedisUrl"])
}
