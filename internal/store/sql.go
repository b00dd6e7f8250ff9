package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cylroute/internal/model"
)

// schema is shared by both SQL backends; %s is the payload column type.
const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_ns BIGINT NOT NULL,
	cylinders  INTEGER NOT NULL,
	cost       DOUBLE PRECISION NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	payload    %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS tune_runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_ns BIGINT NOT NULL,
	payload    %[1]s NOT NULL
);
`

// sqlDB implements Store over database/sql. Queries are written with ?
// placeholders and rebound for the driver.
type sqlDB struct {
	db          *sql.DB
	payloadType string
	dollar      bool // $1-style placeholders
}

// rebind rewrites ? placeholders to $1, $2, ... when needed.
func (s *sqlDB) rebind(q string) string {
	if !s.dollar {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, s.payloadType)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *sqlDB) SavePlan(ctx context.Context, p model.Plan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO plans (id, name, created_ns, cylinders, cost, score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			cost = excluded.cost,
			score = excluded.score,
			payload = excluded.payload
	`), p.ID, p.Name, p.CreatedAt.UnixNano(), len(p.Cylinders), p.Cost, p.Score, string(payload))
	return err
}

func (s *sqlDB) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM plans WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	var p model.Plan
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.Plan{}, fmt.Errorf("plan %s: %w", id, err)
	}
	return p, nil
}

func (s *sqlDB) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanSummary, string, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT payload FROM plans WHERE id > ? ORDER BY id LIMIT ?
	`), cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.PlanSummary{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, "", err
		}
		var p model.Plan
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, "", err
		}
		out = append(out, p.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (s *sqlDB) SaveTuneRun(ctx context.Context, run model.TuneRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tune_runs (id, status, created_ns, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload
	`), run.ID, run.Status, run.CreatedAt.UnixNano(), string(payload))
	return err
}

func (s *sqlDB) GetTuneRun(ctx context.Context, id string) (model.TuneRun, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM tune_runs WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TuneRun{}, ErrNotFound
	}
	if err != nil {
		return model.TuneRun{}, err
	}
	var run model.TuneRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return model.TuneRun{}, fmt.Errorf("tune run %s: %w", id, err)
	}
	return run, nil
}

func (s *sqlDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlDB) Close() error { return s.db.Close() }
