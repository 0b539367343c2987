package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RowsSkipped.WithLabelValues("bad_notional").Add(2)
	m.ContractsPersisted.Inc()

	if got := testutil.ToFloat64(m.RowsSkipped.WithLabelValues("bad_notional")); got != 2 {
		t.Errorf("rows skipped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ContractsPersisted); got != 1 {
		t.Errorf("contracts persisted = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.ContractsFailed)
	RecordContract(errors.New("boom"))
	if got := testutil.ToFloat64(DefaultMetrics.ContractsFailed); got != before+1 {
		t.Errorf("contracts failed = %v, want %v", got, before+1)
	}

	RecordFile("ok", 10*time.Millisecond)
	if testutil.ToFloat64(DefaultMetrics.LastSuccessfulIngestion) == 0 {
		t.Error("last successful ingestion not set")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	counter := DefaultMetrics.HTTPRequests.WithLabelValues("/api/contracts", "GET", "200")
	before := testutil.ToFloat64(counter)

	RecordHTTPRequest("/api/contracts", "GET", 200, time.Millisecond)
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("http requests = %v, want %v", got, before+1)
	}
}
