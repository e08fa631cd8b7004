package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/airguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS records (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			temperature_c DOUBLE PRECISION NOT NULL,
			humidity_pct DOUBLE PRECISION NOT NULL,
			pressure_hpa DOUBLE PRECISION NOT NULL,
			raw_ohms DOUBLE PRECISION NOT NULL,
			compensated_ohms DOUBLE PRECISION NOT NULL,
			baseline_ohms DOUBLE PRECISION NOT NULL,
			voc DOUBLE PRECISION NOT NULL,
			event_name TEXT NOT NULL,
			classifier_distance DOUBLE PRECISION NOT NULL,
			matched BOOLEAN NOT NULL,
			trend TEXT NOT NULL,
			predicted_voc DOUBLE PRECISION NOT NULL,
			z_score DOUBLE PRECISION NOT NULL,
			anomaly BOOLEAN NOT NULL,
			alarm_state TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_ts ON records(ts)`,
		`CREATE TABLE IF NOT EXISTS alarm_transitions (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			voc DOUBLE PRECISION NOT NULL,
			z_score DOUBLE PRECISION NOT NULL,
			event_name TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarm_transitions_ts ON alarm_transitions(ts)`,
	})
}
