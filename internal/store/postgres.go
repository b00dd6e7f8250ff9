package store

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores plans and tuning runs in PostgreSQL through the pgx driver.
type Postgres struct {
	*sqlDB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{&sqlDB{db: db, payloadType: "JSONB", dollar: true}}, nil
}
