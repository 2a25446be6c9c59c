// Package audit implements the compliance trail: a dual-topic worker that
// persists every price decision and every dead-lettered failure to
// PostgreSQL, and the read-only API over those tables.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Decision is one persisted pricing decision. Applied is written by the
// price management system once the recommendation goes live; this service
// only reads it back.
type Decision struct {
	ID               int64      `json:"id"`
	SKU              string     `json:"sku"`
	CurrentPrice     float64    `json:"current_price"`
	RecommendedPrice float64    `json:"recommended_price"`
	MarginPct        float64    `json:"margin_pct"`
	Confidence       float64    `json:"confidence"`
	Reason           string     `json:"reason"`
	CompetitorPrices []float64  `json:"competitor_prices"`
	Applied          int        `json:"applied"`
	AppliedAt        *time.Time `json:"applied_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Failure is one persisted processing failure.
type Failure struct {
	ID                int64     `json:"id"`
	SKU               string    `json:"sku,omitempty"`
	ErrorMessage      string    `json:"error_message"`
	OriginalMessage   string    `json:"original_message,omitempty"`
	ProcessingService string    `json:"processing_service"`
	CreatedAt         time.Time `json:"created_at"`
}

// Statistics aggregates the audit trail.
type Statistics struct {
	TotalDecisions int64   `json:"total_decisions"`
	TotalFailures  int64   `json:"total_failures"`
	AvgConfidence  float64 `json:"avg_confidence"`
	AvgMargin      float64 `json:"avg_margin"`
}

// Field limits enforced before insert.
const (
	maxErrorMessageLen = 1000
	maxServiceNameLen  = 100
)

const defaultPingInterval = 30 * time.Second

// Store is the PostgreSQL audit store. A background keepalive loop
// maintains the health flag so probes never block on the database.
type Store struct {
	db      *sql.DB
	pingInt time.Duration
	healthy atomic.Bool
	logger  *zap.Logger
}

// StoreConfig holds PostgreSQL configuration.
type StoreConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	PingInterval time.Duration
	Logger       *zap.Logger
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pricing_decisions (
		id                BIGSERIAL PRIMARY KEY,
		sku               VARCHAR(50) NOT NULL,
		current_price     DOUBLE PRECISION NOT NULL,
		recommended_price DOUBLE PRECISION NOT NULL,
		margin_pct        DOUBLE PRECISION NOT NULL,
		confidence        DOUBLE PRECISION NOT NULL,
		reason            VARCHAR(500),
		competitor_prices JSONB,
		applied           INTEGER NOT NULL DEFAULT 0,
		applied_at        TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_sku ON pricing_decisions (sku)`,
	`CREATE INDEX IF NOT EXISTS idx_sku_created ON pricing_decisions (sku, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_created_at ON pricing_decisions (created_at)`,
	`CREATE TABLE IF NOT EXISTS pricing_failures (
		id                 BIGSERIAL PRIMARY KEY,
		sku                VARCHAR(50),
		error_message      VARCHAR(1000) NOT NULL,
		original_message   JSONB,
		processing_service VARCHAR(100) NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_service_created ON pricing_failures (processing_service, created_at)`,
}

// NewStore connects to PostgreSQL and runs the schema migrations.
func NewStore(cfg *StoreConfig) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(60)
	db.SetMaxIdleConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, migration := range migrations {
		_, err = db.Exec(migration)
		if err != nil {
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	cfg.Logger.Info("audit-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	pingInt := cfg.PingInterval
	if pingInt <= 0 {
		pingInt = defaultPingInterval
	}

	s := &Store{
		db:      db,
		pingInt: pingInt,
		logger:  cfg.Logger,
	}
	s.healthy.Store(true)
	DBHealthy.Set(1)

	return s, nil
}

// NewStoreWithDB wraps an existing connection. Test constructor.
func NewStoreWithDB(db *sql.DB, logger *zap.Logger) *Store {
	s := &Store{db: db, pingInt: defaultPingInterval, logger: logger}
	s.healthy.Store(true)
	return s
}

// Name identifies the keepalive loop in process lifecycle logs.
func (s *Store) Name() string { return "store-health" }

// Run is the keepalive loop: ping every interval, flip the health flag on
// transitions. Exits when the context is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.db.PingContext(ctx)
			healthy := err == nil
			was := s.healthy.Swap(healthy)

			if was && !healthy {
				DBHealthy.Set(0)
				s.logger.Warn("database-marked-unhealthy", zap.Error(err))
			} else if !was && healthy {
				DBHealthy.Set(1)
				s.logger.Info("database-recovered")
			}
		}
	}
}

// Healthy reports whether the last keepalive succeeded.
func (s *Store) Healthy() bool {
	return s.healthy.Load()
}

// InsertDecision persists one pricing decision.
func (s *Store) InsertDecision(ctx context.Context, d *Decision) error {
	prices, err := json.Marshal(d.CompetitorPrices)
	if err != nil {
		return fmt.Errorf("encode competitor prices: %w", err)
	}

	query := `
		INSERT INTO pricing_decisions (
			sku, current_price, recommended_price, margin_pct,
			confidence, reason, competitor_prices
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		d.SKU,
		d.CurrentPrice,
		d.RecommendedPrice,
		d.MarginPct,
		d.Confidence,
		d.Reason,
		prices,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	s.logger.Debug("decision-recorded", zap.String("sku", d.SKU))
	return nil
}

// InsertFailure persists one processing failure. Oversized fields are
// truncated to the column limits rather than rejected.
func (s *Store) InsertFailure(ctx context.Context, f *Failure) error {
	query := `
		INSERT INTO pricing_failures (
			sku, error_message, original_message, processing_service
		) VALUES ($1, $2, $3, $4)
	`

	var sku interface{}
	if f.SKU != "" {
		sku = f.SKU
	}

	var original interface{}
	if f.OriginalMessage != "" {
		original, _ = json.Marshal(f.OriginalMessage)
	}

	_, err := s.db.ExecContext(ctx, query,
		sku,
		truncate(f.ErrorMessage, maxErrorMessageLen),
		original,
		truncate(f.ProcessingService, maxServiceNameLen),
	)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}

	s.logger.Debug("failure-recorded", zap.String("service", f.ProcessingService))
	return nil
}

// DecisionsBySKU returns the SKU's decisions newest first. The limit is
// clamped to [1, 1000] with 100 as the default.
func (s *Store) DecisionsBySKU(ctx context.Context, sku string, limit int) ([]Decision, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, sku, current_price, recommended_price, margin_pct,
		       confidence, COALESCE(reason, ''), COALESCE(competitor_prices, '[]'),
		       applied, applied_at, created_at
		FROM pricing_decisions
		WHERE sku = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, sku, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var (
			d         Decision
			prices    []byte
			appliedAt sql.NullTime
		)

		err = rows.Scan(&d.ID, &d.SKU, &d.CurrentPrice, &d.RecommendedPrice,
			&d.MarginPct, &d.Confidence, &d.Reason, &prices,
			&d.Applied, &appliedAt, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}

		if appliedAt.Valid {
			t := appliedAt.Time
			d.AppliedAt = &t
		}

		err = json.Unmarshal(prices, &d.CompetitorPrices)
		if err != nil {
			d.CompetitorPrices = []float64{}
		}

		decisions = append(decisions, d)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}

	return decisions, nil
}

// RecentFailures returns failures from the last N hours, newest first.
// Hours is clamped to [1, 720] with 24 as the default.
func (s *Store) RecentFailures(ctx context.Context, hours, limit int) ([]Failure, error) {
	if hours <= 0 {
		hours = 24
	}
	if hours > 720 {
		hours = 720
	}
	limit = clampLimit(limit)

	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	query := `
		SELECT id, COALESCE(sku, ''), error_message,
		       COALESCE(original_message::text, ''), processing_service, created_at
		FROM pricing_failures
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		err = rows.Scan(&f.ID, &f.SKU, &f.ErrorMessage,
			&f.OriginalMessage, &f.ProcessingService, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}

	return failures, nil
}

// GetStatistics aggregates counts and averages across both tables.
func (s *Store) GetStatistics(ctx context.Context) (*Statistics, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM pricing_decisions),
			(SELECT COUNT(*) FROM pricing_failures),
			(SELECT COALESCE(AVG(confidence), 0) FROM pricing_decisions),
			(SELECT COALESCE(AVG(margin_pct), 0) FROM pricing_decisions)
	`

	var stats Statistics
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalDecisions,
		&stats.TotalFailures,
		&stats.AvgConfidence,
		&stats.AvgMargin,
	)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}

	return &stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("audit-store-closing")
	return s.db.Close()
}

// IsPermanent reports whether a store error would fail on redelivery too.
// Data exceptions (class 22) and integrity violations (class 23) are data
// problems, not outages; the worker drops those messages instead of
// retrying forever.
func IsPermanent(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "22" || class == "23"
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
