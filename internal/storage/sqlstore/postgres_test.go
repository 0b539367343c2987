package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// newPostgresStore opens the GORM store on a PostgreSQL container.
func newPostgresStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(DialectPostgres, dsn)
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	// AutoMigrate is idempotent.
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresDialect_GraphLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	a, err := store.GetOrCreateCounterparty(ctx, "Goldman Sachs")
	require.NoError(t, err)
	b, err := store.GetOrCreateCounterparty(ctx, "GOLDMAN sachs")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	sec, err := store.GetOrCreateSecurity(ctx, "ACME")
	require.NoError(t, err)

	due := day(2025, 4, 1)
	stored, err := store.SaveContractGraph(ctx, &storage.ContractGraph{
		Contract: newContract(t, store, "PG-1", "Goldman Sachs"),
		Obligations: []storage.ObligationGraph{{
			Obligation: &domain.SwapObligation{Type: domain.ObligationFixedPayment, Amount: 10000, Currency: "USD", DueDate: &due, Status: domain.StatusPending},
			Triggers:   []*domain.ObligationTrigger{{Type: domain.TriggerTimeBased, Condition: "date >= 2025-04-01", IsActive: true}},
		}},
		Instruments: []*domain.UnderlyingInstrument{{SecurityID: sec.ID, InstrumentType: domain.InstrumentEquity}},
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.CounterpartyID)

	found, err := store.FindByReferenceEntity(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Goldman Sachs", found[0].Counterparty)
	assert.Equal(t, 5e6, found[0].CollateralTerms["threshold"])

	rows, err := store.ObligationsView(ctx, "PG-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].TriggerCondition)
	assert.Equal(t, "date >= 2025-04-01", *rows[0].TriggerCondition)

	require.NoError(t, store.Insert(ctx, &domain.RiskSnapshot{
		SubjectKind: domain.SubjectCounterparty,
		Subject:     "Goldman Sachs",
		Score:       42,
		Level:       "Low",
		ScoredAt:    day(2025, 6, 1),
	}))
	history, err := store.GetBySubject(ctx, domain.SubjectCounterparty, "goldman sachs")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	deleted, err := store.DeleteContract(ctx, "PG-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.GetContract(ctx, "PG-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
