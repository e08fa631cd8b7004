package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:airguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, placeholder: func(int) string { return "?" }}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.exec(ctx, []string{
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			temperature_c REAL NOT NULL,
			humidity_pct REAL NOT NULL,
			pressure_hpa REAL NOT NULL,
			raw_ohms REAL NOT NULL,
			compensated_ohms REAL NOT NULL,
			baseline_ohms REAL NOT NULL,
			voc REAL NOT NULL,
			event_name TEXT NOT NULL,
			classifier_distance REAL NOT NULL,
			matched INTEGER NOT NULL,
			trend TEXT NOT NULL,
			predicted_voc REAL NOT NULL,
			z_score REAL NOT NULL,
			anomaly INTEGER NOT NULL,
			alarm_state TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_ts ON records(ts)`,
		`CREATE TABLE IF NOT EXISTS alarm_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			voc REAL NOT NULL,
			z_score REAL NOT NULL,
			event_name TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarm_transitions_ts ON alarm_transitions(ts)`,
	})
}
