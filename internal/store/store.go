package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"cylroute/internal/model"
)

// Store is the persistence interface used by the API server and the CLI.
// Plans are immutable once saved; tuning runs are saved repeatedly while
// they progress.
type Store interface {
	SavePlan(ctx context.Context, p model.Plan) error
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	// ListPlans pages through plans in id order. cursor is the last id of
	// the previous page; nextCursor is empty on the final page.
	ListPlans(ctx context.Context, cursor string, limit int) (items []model.PlanSummary, nextCursor string, err error)

	SaveTuneRun(ctx context.Context, run model.TuneRun) error
	GetTuneRun(ctx context.Context, id string) (model.TuneRun, error)

	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")

// NewID returns a time-ordered id, so id order is creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
