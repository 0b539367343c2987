package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
	"swap-risk-lab/internal/storage/clickhouse"
)

func TestRiskHistoryStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewRiskHistoryStore(conn)
	ctx := context.Background()

	later := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-24 * time.Hour)

	require.NoError(t, store.Insert(ctx, &domain.RiskSnapshot{
		SubjectKind: domain.SubjectCounterparty, Subject: "Citi",
		Score: 72.5, Level: "Medium", NotionalScore: 80, NumSwaps: 3, TotalNotional: 2.5e7,
		ScoredAt: later,
	}))
	require.NoError(t, store.Insert(ctx, &domain.RiskSnapshot{
		SubjectKind: domain.SubjectCounterparty, Subject: "Citi",
		Score: 40, Level: "Low", NumSwaps: 1,
		ScoredAt: earlier,
	}))
	require.NoError(t, store.Insert(ctx, &domain.RiskSnapshot{
		SubjectKind: domain.SubjectEntity, Subject: "Citi",
		Score: 90, Level: "High", ScoredAt: later,
	}))

	history, err := store.GetBySubject(ctx, domain.SubjectCounterparty, "CITI")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 40.0, history[0].Score)
	assert.True(t, history[0].ScoredAt.Equal(earlier))
	assert.Equal(t, 72.5, history[1].Score)
	assert.Equal(t, 3, history[1].NumSwaps)
	assert.Equal(t, 80.0, history[1].NotionalScore)

	none, err := store.GetBySubject(ctx, domain.SubjectEntity, "Globex")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRiskHistoryStore_InsertRejectsBlankSubject(t *testing.T) {
	// Validation runs before any query, so a nil connection is never touched.
	store := clickhouse.NewRiskHistoryStore(nil)
	err := store.Insert(context.Background(), &domain.RiskSnapshot{SubjectKind: domain.SubjectEntity})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
