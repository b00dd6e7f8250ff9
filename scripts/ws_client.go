// Package main runs a demo WebSocket client that plans a small map and
// prints the replay stream.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type string `json:"type"`
	Step *struct {
		Index     int     `json:"index"`
		Point     struct{ X, Y float64 }
		Collected []int   `json:"collected"`
		Value     float64 `json:"value"`
		Fuel      float64 `json:"fuel"`
		Time      float64 `json:"time"`
		InBudget  bool    `json:"inBudget"`
	} `json:"step,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a plan
	body := []byte(`{"name":"demo","cylinders":[{"x":3,"y":0,"category":1},{"x":6,"y":4,"category":3},{"x":0,"y":7,"category":2},{"x":5,"y":0.2,"category":2}]}`)
	resp, err := http.Post(base+"/v1/plans", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("create plan: %s", resp.Status)
	}
	var plan struct {
		ID       string   `json:"id"`
		Order    []int    `json:"order"`
		Commands []string `json:"commands"`
		Score    float64  `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		log.Fatal(err)
	}
	log.Printf("Plan ID: %s order=%v score=%.0f", plan.ID, plan.Order, plan.Score)
	for _, c := range plan.Commands {
		log.Printf("  %s", c)
	}

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/" + plan.ID + "/replay", RawQuery: "delayMs=200"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	_ = c.SetReadDeadline(time.Now().Add(30 * time.Second))

	for {
		var f frame
		if err := c.ReadJSON(&f); err != nil {
			log.Printf("read: %v", err)
			return
		}
		if f.Type == "complete" {
			log.Printf("WS <- complete")
			return
		}
		if s := f.Step; s != nil {
			log.Printf("WS <- step %d at (%.2f, %.2f) collected=%v value=%.0f fuel=%.2f time=%.2f inBudget=%v",
				s.Index, s.Point.X, s.Point.Y, s.Collected, s.Value, s.Fuel, s.Time, s.InBudget)
		}
	}
}
