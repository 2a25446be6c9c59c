package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStoreWithDB(db, zap.NewNop()), mock
}

func TestInsertDecision(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO pricing_decisions").
		WithArgs("SKU001", 100.0, 75.0, 0.5, 0.8, "STABLE: Market aligned", []byte("[95,98]")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertDecision(context.Background(), &Decision{
		SKU:              "SKU001",
		CurrentPrice:     100.0,
		RecommendedPrice: 75.0,
		MarginPct:        0.5,
		Confidence:       0.8,
		Reason:           "STABLE: Market aligned",
		CompetitorPrices: []float64{95, 98},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFailureTruncatesOversizedFields(t *testing.T) {
	store, mock := newTestStore(t)

	longErr := strings.Repeat("x", maxErrorMessageLen+50)
	longService := strings.Repeat("s", maxServiceNameLen+10)

	mock.ExpectExec("INSERT INTO pricing_failures").
		WithArgs("SKU001",
			longErr[:maxErrorMessageLen],
			[]byte(`"{\"bad\":true}"`),
			longService[:maxServiceNameLen]).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertFailure(context.Background(), &Failure{
		SKU:               "SKU001",
		ErrorMessage:      longErr,
		OriginalMessage:   `{"bad":true}`,
		ProcessingService: longService,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFailureNullsOptionalFields(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO pricing_failures").
		WithArgs(nil, "boom", nil, "rules_engine").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertFailure(context.Background(), &Failure{
		ErrorMessage:      "boom",
		ProcessingService: "rules_engine",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func decisionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "sku", "current_price", "recommended_price", "margin_pct",
		"confidence", "reason", "competitor_prices", "applied", "applied_at", "created_at",
	})
}

func TestDecisionsBySKU(t *testing.T) {
	store, mock := newTestStore(t)

	now := time.Now().UTC()
	appliedAt := now.Add(-30 * time.Minute)
	rows := decisionRows().
		AddRow(2, "SKU001", 100.0, 97.0, 0.4, 0.8, "STABLE: Market aligned", []byte("[95,98]"), 1, appliedAt, now).
		AddRow(1, "SKU001", 100.0, 75.0, 0.5, 0.7, "", []byte("[]"), 0, nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM pricing_decisions").
		WithArgs("SKU001", 5).
		WillReturnRows(rows)

	decisions, err := store.DecisionsBySKU(context.Background(), "SKU001", 5)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	if decisions[0].ID != 2 {
		t.Errorf("first id = %d, want newest first", decisions[0].ID)
	}
	if len(decisions[0].CompetitorPrices) != 2 || decisions[0].CompetitorPrices[0] != 95 {
		t.Errorf("competitor prices = %v", decisions[0].CompetitorPrices)
	}
	if decisions[0].Applied != 1 {
		t.Errorf("applied = %d, want 1", decisions[0].Applied)
	}
	if decisions[0].AppliedAt == nil || !decisions[0].AppliedAt.Equal(appliedAt) {
		t.Errorf("applied_at = %v, want %v", decisions[0].AppliedAt, appliedAt)
	}
	if len(decisions[1].CompetitorPrices) != 0 {
		t.Errorf("empty prices column must decode to empty slice, got %v",
			decisions[1].CompetitorPrices)
	}
	if decisions[1].Applied != 0 || decisions[1].AppliedAt != nil {
		t.Errorf("unapplied decision = applied %d applied_at %v",
			decisions[1].Applied, decisions[1].AppliedAt)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionsBySKUClampsLimit(t *testing.T) {
	store, mock := newTestStore(t)

	cases := []struct {
		in   int
		want int
	}{
		{0, 100},
		{-3, 100},
		{5000, 1000},
		{42, 42},
	}

	for _, tc := range cases {
		mock.ExpectQuery("SELECT (.+) FROM pricing_decisions").
			WithArgs("SKU001", tc.want).
			WillReturnRows(decisionRows())

		_, err := store.DecisionsBySKU(context.Background(), "SKU001", tc.in)
		require.NoError(t, err, "limit %d", tc.in)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentFailures(t *testing.T) {
	store, mock := newTestStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "sku", "error_message", "original_message", "processing_service", "created_at",
	}).AddRow(1, "", "boom", `{"sku":"SKU001"}`, "rules_engine", now)

	// Hours <= 0 falls back to the 24 hour window; the cutoff is computed
	// from the wall clock so only the limit is pinned.
	mock.ExpectQuery("SELECT (.+) FROM pricing_failures").
		WithArgs(sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	failures, err := store.RecentFailures(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	if failures[0].ErrorMessage != "boom" {
		t.Errorf("error = %q", failures[0].ErrorMessage)
	}
	if failures[0].ProcessingService != "rules_engine" {
		t.Errorf("service = %q", failures[0].ProcessingService)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatistics(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"decisions", "failures", "avg_confidence", "avg_margin"}).
		AddRow(120, 4, 0.73, 0.31)

	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := store.GetStatistics(context.Background())
	require.NoError(t, err)

	if stats.TotalDecisions != 120 {
		t.Errorf("total decisions = %d", stats.TotalDecisions)
	}
	if stats.TotalFailures != 4 {
		t.Errorf("total failures = %d", stats.TotalFailures)
	}
	if stats.AvgConfidence != 0.73 {
		t.Errorf("avg confidence = %v", stats.AvgConfidence)
	}
	if stats.AvgMargin != 0.31 {
		t.Errorf("avg margin = %v", stats.AvgMargin)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreHealthKeepalive(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	store := NewStoreWithDB(db, zap.NewNop())
	store.pingInt = 5 * time.Millisecond

	if !store.Healthy() {
		t.Fatal("store must start healthy")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = store.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	if store.Healthy() {
		t.Error("failed keepalive must mark the store unhealthy")
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"not null violation", &pq.Error{Code: "23502"}, true},
		{"string too long", &pq.Error{Code: "22001"}, true},
		{"invalid text representation", &pq.Error{Code: "22P02"}, true},
		{"wrapped integrity violation", fmt.Errorf("insert decision: %w", &pq.Error{Code: "23505"}), true},
		{"connection failure", &pq.Error{Code: "08006"}, false},
		{"serialization failure", &pq.Error{Code: "40001"}, false},
		{"plain error", errors.New("dial tcp: connection refused"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsPermanent(tc.err)
			if got != tc.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
