package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"airguard/internal/config"
	"airguard/internal/model"
)

// Store exports computed records and alarm transitions. It is write-only:
// the pipeline never reads its own history back.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveRecord(ctx context.Context, sessionID string, rec model.OutputRecord) error
	SaveTransition(ctx context.Context, sessionID string, tr model.AlarmTransition) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
	// placeholder builds the n-th (1-based) bind parameter
	placeholder func(n int) string
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) exec(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) params(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = b.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (b *baseStore) SaveRecord(ctx context.Context, sessionID string, rec model.OutputRecord) error {
	if b.db == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO records (session_id, ts, temperature_c, humidity_pct, pressure_hpa, raw_ohms, compensated_ohms,
			baseline_ohms, voc, event_name, classifier_distance, matched, trend, predicted_voc, z_score, anomaly,
			alarm_state, status)
		VALUES (`+b.params(18)+`)`,
		sessionID,
		tsValue(rec.Timestamp),
		rec.TemperatureC,
		rec.HumidityPct,
		rec.PressureHPa,
		rec.RawOhms,
		rec.CompensatedOhms,
		rec.BaselineOhms,
		rec.VOC,
		rec.EventName,
		rec.ClassifierDistance,
		rec.Matched,
		string(rec.Trend),
		rec.PredictedVOC,
		rec.ZScore,
		rec.Anomaly,
		string(rec.AlarmState),
		rec.Status,
	)
	return err
}

func (b *baseStore) SaveTransition(ctx context.Context, sessionID string, tr model.AlarmTransition) error {
	if b.db == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO alarm_transitions (session_id, ts, from_state, to_state, voc, z_score, event_name, status)
		VALUES (`+b.params(8)+`)`,
		sessionID,
		tsValue(tr.Timestamp),
		string(tr.From),
		string(tr.To),
		tr.VOC,
		tr.ZScore,
		tr.EventName,
		tr.Status,
	)
	return err
}

func tsValue(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
