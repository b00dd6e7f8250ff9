package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"cylroute/internal/model"
	"cylroute/internal/opt"
)

const maxReplayDelayMs = 10000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// replayPlan streams the simulated robot state along a stored plan's path,
// one "step" frame per vertex followed by a "complete" frame.
// ?delayMs= overrides the configured pause between frames.
func (s *Server) replayPlan(w http.ResponseWriter, r *http.Request, plan model.Plan) {
	delay := time.Duration(s.Config.API.ReplayDelayMs) * time.Millisecond
	if v := r.URL.Query().Get("delayMs"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 || ms > maxReplayDelayMs {
			writeProblem(w, http.StatusBadRequest, "Invalid delayMs", "delayMs must be in [0,10000]", r.URL.Path)
			return
		}
		delay = time.Duration(ms) * time.Millisecond
	}
	cyls, err := toCylinders(plan.Cylinders)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Corrupt plan", err.Error(), r.URL.Path)
		return
	}
	steps := opt.Replay(cyls, plan.Path, s.Planner.Profile)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	defer conn.Close()

	// drain client frames so close messages are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := range steps {
		if i > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
		if err := conn.WriteJSON(model.ReplayFrame{Type: "step", Step: &steps[i]}); err != nil {
			log.Printf("replay %s: %v", plan.ID, err)
			return
		}
	}
	if err := conn.WriteJSON(model.ReplayFrame{Type: "complete"}); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete"),
		time.Now().Add(time.Second))
}
