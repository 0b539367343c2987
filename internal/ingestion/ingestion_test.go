package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/resolver"
	"swap-risk-lab/internal/storage"
	"swap-risk-lab/internal/storage/memory"
)

const header = "contract_id,counterparty,reference_entity,notional_amount,currency,effective_date,maturity_date,swap_type,payment_frequency"

func writeCSV(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join(append([]string{header}, rows...), "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	store     *memory.Store
	agg       *exposure.Aggregator
	cache     *exposure.SnapshotCache
	publisher *recordingPublisher
	pipeline  *Pipeline
}

func newFixture() *fixture {
	store := memory.NewStore()
	cache := exposure.NewSnapshotCache(store)
	agg := exposure.NewAggregator(store, exposure.Options{Cache: cache})
	pub := &recordingPublisher{}
	return &fixture{
		store:     store,
		agg:       agg,
		cache:     cache,
		publisher: pub,
		pipeline: NewPipeline(PipelineOptions{
			Resolver:  resolver.New(store, resolver.Options{}),
			Store:     store,
			Cache:     agg,
			Publisher: pub,
		}),
	}
}

func TestProcessFile_CreditDefaultSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	path := writeCSV(t, t.TempDir(), "cds.csv",
		"CDS1,Goldman Sachs,GME,1000000,USD,2024-01-01,2029-01-01,credit_default,quarterly",
	)

	res, err := f.pipeline.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CDS1"}, res.Persisted)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 2, res.Obligations)
	assert.Equal(t, 2, res.Triggers)
	assert.Equal(t, 1, res.Instruments)
	assert.NotEmpty(t, res.Fingerprint)

	obligations, err := f.store.ListObligations(ctx, "CDS1")
	require.NoError(t, err)
	require.Len(t, obligations, 2)
	assert.Equal(t, domain.ObligationPremiumPayment, obligations[0].Type)
	assert.InDelta(t, 10_000, obligations[0].Amount, 0.001)
	assert.Equal(t, domain.ObligationProtectionPayment, obligations[1].Type)
	assert.InDelta(t, 1_000_000, obligations[1].Amount, 0.001)
	assert.True(t, obligations[1].IsContingent())

	rows, err := f.store.ObligationsView(ctx, "CDS1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	e, err := f.agg.EntityExposure(ctx, "GME")
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, e.TotalNotional, 0.001)
	assert.Equal(t, 1, e.NumSwaps)

	assert.Equal(t, 1, f.publisher.count(EventContractPersisted))
	assert.Equal(t, 1, f.publisher.count(EventFileProcessed))
}

func TestProcessFile_MalformedRowDoesNotStopFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	path := writeCSV(t, t.TempDir(), "mixed.csv",
		"A1,GS,GME,1000000,USD,2025-01-01,2026-01-01,interest_rate,quarterly",
		"A2,MS,AMC,not-a-number,USD,2025-01-01,2026-01-01,interest_rate,quarterly",
		"A3,JPM,TSLA,2500000,EUR,2025-02-01,2027-02-01,total_return,annual",
	)

	res, err := f.pipeline.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A3"}, res.Persisted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Rows)

	contracts, err := f.store.ListContracts(ctx)
	require.NoError(t, err)
	assert.Len(t, contracts, 2)
}

func TestProcessFile_ReingestReplacesDerivedRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dir := t.TempDir()
	path := writeCSV(t, dir, "cds.csv",
		"CDS1,GS,GME,1000000,USD,2024-01-01,2029-01-01,credit_default,quarterly",
	)

	_, err := f.pipeline.ProcessFile(ctx, path)
	require.NoError(t, err)
	_, err = f.pipeline.ProcessFile(ctx, path)
	require.NoError(t, err)

	obligations, err := f.store.ListObligations(ctx, "CDS1")
	require.NoError(t, err)
	assert.Len(t, obligations, 2)

	cps, err := f.store.ListCounterparties(ctx)
	require.NoError(t, err)
	assert.Len(t, cps, 1)
}

func TestProcessFile_InvalidatesExposureCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dir := t.TempDir()

	_, err := f.pipeline.ProcessFile(ctx, writeCSV(t, dir, "one.csv",
		"S1,GS,GME,1000000,USD,2024-01-01,2029-01-01,credit_default,quarterly",
	))
	require.NoError(t, err)

	e, err := f.agg.EntityExposure(ctx, "GME")
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumSwaps)

	_, err = f.pipeline.ProcessFile(ctx, writeCSV(t, dir, "two.csv",
		"S2,MS,GME,500000,USD,2024-01-01,2029-01-01,credit_default,quarterly",
	))
	require.NoError(t, err)

	e, err = f.agg.EntityExposure(ctx, "GME")
	require.NoError(t, err)
	assert.Equal(t, 2, e.NumSwaps)
	assert.InDelta(t, 1_500_000, e.TotalNotional, 0.001)
}

func TestProcessFile_Unreadable(t *testing.T) {
	f := newFixture()
	_, err := f.pipeline.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

type failingStore struct {
	*memory.Store
	failID string
}

func (s *failingStore) SaveContractGraph(ctx context.Context, g *storage.ContractGraph) (*domain.SwapContract, error) {
	if g.Contract.ContractID == s.failID {
		return nil, errors.New("disk full")
	}
	return s.Store.SaveContractGraph(ctx, g)
}

func TestProcessContracts_FailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.NewStore(), failID: "B2"}
	p := NewPipeline(PipelineOptions{
		Resolver: resolver.New(store, resolver.Options{}),
		Store:    store,
	})
	path := writeCSV(t, t.TempDir(), "b.csv",
		"B1,GS,GME,100,USD,2024-01-01,2025-01-01,other,annual",
		"B2,GS,GME,100,USD,2024-01-01,2025-01-01,other,annual",
		"B3,GS,GME,100,USD,2024-01-01,2025-01-01,other,annual",
	)

	res, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B3"}, res.Persisted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "B2", res.Failed[0].ContractID)
}

func TestProcessContracts_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture()

	res, err := f.pipeline.ProcessContracts(ctx, []*domain.SwapContract{{ContractID: "X"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Persisted)
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{"b.csv", "a.json", "notes.md", "nested/c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := ExpandPaths([]string{dir, filepath.Join(dir, "b.csv")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(sub, "c.txt"),
	}, files)

	_, err = ExpandPaths([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv",
		"R1,GS,GME,100,USD,2024-01-01,2025-01-01,credit_default,quarterly",
		"R2,GS,AMC,bad,USD,2024-01-01,2025-01-01,credit_default,quarterly",
	)
	writeCSV(t, dir, "b.csv",
		"R3,MS,GME,200,USD,2024-01-01,2025-01-01,credit_default,quarterly",
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte("{not json"), 0o644))

	summary, err := NewRunner(RunnerOptions{Pipeline: f.pipeline, Workers: 4}).Run(ctx, []string{dir})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Files, 2)
	assert.Equal(t, 2, summary.Persisted())
	assert.Equal(t, 1, summary.Skipped())
	assert.Equal(t, 0, summary.Failed())
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "c.json"), summary.Errors[0].Path)

	e, err := f.agg.EntityExposure(ctx, "gme")
	require.NoError(t, err)
	assert.Equal(t, 2, e.NumSwaps)
}

func TestWatcher_IngestsNewFilesOnce(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeCSV(t, dir, "existing.csv",
		"W1,GS,GME,100,USD,2024-01-01,2025-01-01,credit_default,quarterly",
	)

	results := make(chan *FileResult, 8)
	w := NewWatcher(WatcherOptions{
		Pipeline: f.pipeline,
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		OnResult: func(r *FileResult) { results <- r },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	next := func() *FileResult {
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for ingestion")
			return nil
		}
	}

	assert.Equal(t, []string{"W1"}, next().Persisted)

	writeCSV(t, dir, "dropped.csv",
		"W2,MS,AMC,100,USD,2024-01-01,2025-01-01,credit_default,quarterly",
	)
	assert.Equal(t, []string{"W2"}, next().Persisted)

	// identical content under a new name is not ingested again
	writeCSV(t, dir, "copy.csv",
		"W2,MS,AMC,100,USD,2024-01-01,2025-01-01,credit_default,quarterly",
	)
	select {
	case r := <-results:
		t.Fatalf("unexpected ingestion of %s", r.Path)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
