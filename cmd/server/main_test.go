package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/orchestrator"
	"swap-risk-lab/internal/risk"
	"swap-risk-lab/internal/verification"
)

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := &config.Config{Store: config.StoreMemory, Workers: 1, Addr: "127.0.0.1:0", RescoreInterval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	cfg := &config.Config{Store: config.StoreMemory, Workers: 1, Addr: "not-an-address"}
	err := run(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "http server")
}

func TestSweepEvent(t *testing.T) {
	finished := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := sweepEvent(&orchestrator.Summary{
		FinishedAt:     finished,
		Contracts:      3,
		Entities:       []*risk.Assessment{{}, {}},
		Counterparties: []*risk.Assessment{{}},
		Verification:   &verification.VerificationReport{Repaired: 1},
		Errors:         []string{"x"},
	})
	assert.Equal(t, SweepEvent{FinishedAt: finished, Contracts: 3, Entities: 2, Counterparties: 1, Repaired: 1, Errors: 1}, ev)
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "rescore-interval", flagName(config.KeyRescoreInterval))
}
