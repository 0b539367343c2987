package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// newTestStore opens a file-backed SQLite database with all tables migrated.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "swaps.db"))
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newContract(t *testing.T, store *Store, contractID, counterparty string) *domain.SwapContract {
	t.Helper()
	cp, err := store.GetOrCreateCounterparty(context.Background(), counterparty)
	require.NoError(t, err)
	fixed := 4.0
	return &domain.SwapContract{
		ContractID:       contractID,
		CounterpartyID:   cp.ID,
		ReferenceEntity:  "ACME Corp",
		NotionalAmount:   1_000_000,
		Currency:         "USD",
		EffectiveDate:    day(2025, 1, 1),
		MaturityDate:     day(2030, 1, 1),
		SwapType:         domain.SwapTypeInterestRate,
		PaymentFrequency: domain.FrequencyQuarterly,
		FixedRate:        &fixed,
		CollateralTerms:  domain.Terms{"threshold": 5e6},
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestStore_GetOrCreateIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.GetOrCreateCounterparty(ctx, "Morgan Stanley")
	require.NoError(t, err)
	b, err := store.GetOrCreateCounterparty(ctx, "MORGAN stanley ")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Morgan Stanley", b.Name)

	s1, err := store.GetOrCreateSecurity(ctx, "cdx.na.ig")
	require.NoError(t, err)
	s2, err := store.GetOrCreateSecurity(ctx, "CDX.NA.IG")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)

	_, err = store.GetOrCreateCounterparty(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestStore_UpsertContractRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := newContract(t, store, "SW-1", "Citi")
	first, err := store.UpsertContract(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "Citi", first.Counterparty)
	assert.Equal(t, 5e6, first.CollateralTerms["threshold"])
	require.NotNil(t, first.FixedRate)
	assert.Equal(t, 4.0, *first.FixedRate)
	assert.True(t, first.MaturityDate.Equal(day(2030, 1, 1)))

	c.ReferenceEntity = "Globex"
	c.FixedRate = nil
	second, err := store.UpsertContract(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Globex", second.ReferenceEntity)
	assert.Nil(t, second.FixedRate)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	found, err := store.FindByReferenceEntity(ctx, "glob")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := store.FindByReferenceEntity(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, none)

	byCp, err := store.FindByCounterparty(ctx, "CITI")
	require.NoError(t, err)
	assert.Len(t, byCp, 1)
}

func TestStore_UpsertContractRejects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := newContract(t, store, "SW-1", "Citi")
	c.CounterpartyID = 404
	_, err := store.UpsertContract(ctx, c)
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	c = newContract(t, store, "SW-2", "Citi")
	c.NotionalAmount = -1
	_, err = store.UpsertContract(ctx, c)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.GetContract(ctx, "SW-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_GraphViewAndCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gme, err := store.GetOrCreateSecurity(ctx, "GME")
	require.NoError(t, err)
	due := day(2025, 4, 1)

	g := &storage.ContractGraph{
		Contract: newContract(t, store, "SW-1", "Citi"),
		Obligations: []storage.ObligationGraph{
			{
				Obligation: &domain.SwapObligation{Type: domain.ObligationFixedPayment, Amount: 10000, Currency: "USD", DueDate: &due, Status: domain.StatusPending},
				Triggers: []*domain.ObligationTrigger{
					{Type: domain.TriggerTimeBased, Condition: "date >= 2025-04-01", IsActive: true},
					{Type: domain.TriggerCustom, Condition: "performance(GME) < 0", IsActive: false},
				},
			},
			{Obligation: &domain.SwapObligation{Type: domain.ObligationFloatingPayment, Currency: "USD", Status: domain.StatusPending}},
		},
		Instruments: []*domain.UnderlyingInstrument{{SecurityID: gme.ID, InstrumentType: domain.InstrumentEquity}},
	}
	stored, err := store.SaveContractGraph(ctx, g)
	require.NoError(t, err)

	rows, err := store.ObligationsView(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].TriggerType)
	assert.Equal(t, domain.TriggerTimeBased, *rows[0].TriggerType)
	require.NotNil(t, rows[0].DueDate)
	assert.True(t, rows[0].DueDate.Equal(due))
	assert.Nil(t, rows[1].TriggerType)
	for _, r := range rows {
		require.NotNil(t, r.InstrumentIdentifier)
		assert.Equal(t, "GME", *r.InstrumentIdentifier)
	}

	byIn, err := store.ObligationsByInstrument(ctx, "gme")
	require.NoError(t, err)
	assert.Len(t, byIn, 2)

	require.NoError(t, store.SaveAnalysis(ctx, &domain.SwapAnalysis{SwapID: stored.ID, RiskScore: 61.5, KeyRisks: []string{"maturity"}}))
	analysis, err := store.GetAnalysis(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"maturity"}, analysis.KeyRisks)

	deleted, err := store.DeleteContract(ctx, "SW-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, model := range []any{&obligationRecord{}, &triggerRecord{}, &instrumentRecord{}, &analysisRecord{}} {
		var n int64
		require.NoError(t, store.db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left after cascade", model)
	}

	deleted, err = store.DeleteContract(ctx, "SW-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_SetTriggerActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c, err := store.UpsertContract(ctx, newContract(t, store, "SW-1", "Citi"))
	require.NoError(t, err)
	o := &domain.SwapObligation{SwapID: c.ID, Type: domain.ObligationProtectionPayment, Currency: "USD", Status: domain.StatusContingent}
	require.NoError(t, store.AddObligation(ctx, o))
	tr := &domain.ObligationTrigger{ObligationID: o.ID, Type: domain.TriggerCreditEvent, Condition: "credit_event(ACME Corp) = true", IsActive: true}
	require.NoError(t, store.AddObligationTrigger(ctx, tr))

	require.NoError(t, store.SetTriggerActive(ctx, tr.ID, false))
	rows, err := store.ObligationsView(ctx, "SW-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	triggers, err := store.ListTriggers(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.False(t, triggers[0].IsActive)

	assert.ErrorIs(t, store.SetTriggerActive(ctx, 999, true), storage.ErrNotFound)
	assert.ErrorIs(t, store.AddObligationTrigger(ctx, &domain.ObligationTrigger{ObligationID: 999}), storage.ErrForeignKey)
}

func TestStore_RiskHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, d := range []int{5, 2} {
		require.NoError(t, store.Insert(ctx, &domain.RiskSnapshot{
			SubjectKind: domain.SubjectCounterparty,
			Subject:     "Citi",
			Score:       float64(d * 10),
			Level:       "Low",
			NumSwaps:    d,
			ScoredAt:    day(2025, 6, d),
		}))
	}

	history, err := store.GetBySubject(ctx, domain.SubjectCounterparty, "CITI")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 20.0, history[0].Score)
	assert.Equal(t, 50.0, history[1].Score)
}

// newMockStore wires the MySQL dialector to sqlmock so transaction control
// can be asserted without a server.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

func TestStore_DeleteContractRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	deleted, err := store.DeleteContract(context.Background(), "SW-1")
	assert.Error(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertContractRollsBackOnMissingCounterparty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM .counterparties.`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	c := &domain.SwapContract{ContractID: "SW-1", CounterpartyID: 7, EffectiveDate: day(2025, 1, 1), MaturityDate: day(2026, 1, 1)}
	_, err := store.UpsertContract(context.Background(), c)
	assert.ErrorIs(t, err, storage.ErrForeignKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}
