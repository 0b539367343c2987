package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSwaps(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swaps.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"contract_id,counterparty,reference_entity,notional_amount,currency,effective_date,maturity_date,swap_type,payment_frequency,fixed_rate\n"+
			"IRS1,Goldman Sachs,ACME,1000000,USD,2024-01-01,2029-01-01,interest_rate,quarterly,4.0\n"+
			"CDS1,Morgan Stanley,ACME,500000,USD,2024-01-01,2029-01-01,credit_default,quarterly,\n",
	), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestReportEntity(t *testing.T) {
	swaps := writeSwaps(t)

	out, err := run(t, "entity", "ACME", "--ingest", swaps)
	require.NoError(t, err)
	assert.Contains(t, out, "# Risk Report: ACME")
	assert.NotContains(t, out, "## Narrative")

	out, err = run(t, "counterparty", "Goldman Sachs", "--ingest", swaps, "--format", "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "counterparty", decoded["kind"])
	assert.EqualValues(t, 1, decoded["num_swaps"])
}

func TestReportEntity_NoData(t *testing.T) {
	_, err := run(t, "entity", "NOBODY")
	assert.ErrorContains(t, err, "no matching swaps")
}

func TestReportContracts(t *testing.T) {
	swaps := writeSwaps(t)

	out, err := run(t, "contracts", "--ingest", swaps)
	require.NoError(t, err)
	assert.Contains(t, out, "| CDS1 | Morgan Stanley | ACME | credit_default | 500000.00 |")

	out, err = run(t, "contracts", "--ingest", swaps, "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "IRS1,Goldman Sachs,ACME")

	_, err = run(t, "contracts", "-f", "pdf")
	assert.ErrorContains(t, err, "unknown format")
}

func TestReportObligations_Out(t *testing.T) {
	swaps := writeSwaps(t)
	dest := filepath.Join(t.TempDir(), "obligations.md")

	out, err := run(t, "obligations", "--contract", "CDS1", "--ingest", swaps, "--out", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(written), "# Obligations")
	assert.Contains(t, string(written), "| CDS1 | premium_payment |")
	assert.NotContains(t, string(written), "IRS1")
}
