package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/risk"
)

type stubGenerator struct {
	text  string
	err   error
	delay time.Duration
}

func (g stubGenerator) Generate(ctx context.Context, _ string, _ int) (string, error) {
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	return g.text, g.err
}

func TestSummarize_Degrades(t *testing.T) {
	ctx := context.Background()

	if got := Summarize(ctx, nil, "p", 10); got != Unavailable {
		t.Errorf("nil generator: got %q", got)
	}
	if got := Summarize(ctx, stubGenerator{err: errors.New("boom")}, "p", 10); got != Unavailable {
		t.Errorf("error: got %q", got)
	}
	if got := Summarize(ctx, stubGenerator{text: "  \n"}, "p", 10); got != Unavailable {
		t.Errorf("blank: got %q", got)
	}

	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if got := Summarize(timeout, stubGenerator{text: "late", delay: time.Second}, "p", 10); got != Unavailable {
		t.Errorf("timeout: got %q", got)
	}

	if got := Summarize(ctx, stubGenerator{text: " Risk is moderate. "}, "p", 10); got != "Risk is moderate." {
		t.Errorf("ok: got %q", got)
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	var req generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"response": "summary text", "done": true})
	}))
	defer server.Close()

	client := NewOllamaClient(WithBaseURL(server.URL+"/"), WithModel("llama3"))
	text, err := client.Generate(context.Background(), "hello", 128)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "summary text" {
		t.Errorf("expected summary text, got %q", text)
	}
	if req.Model != "llama3" || req.Prompt != "hello" || req.Stream || req.Options.NumPredict != 128 {
		t.Errorf("unexpected request body: %+v", req)
	}
}

func TestOllamaClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if count == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
	}))
	defer server.Close()

	client := NewOllamaClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithRetryDelay(5*time.Millisecond),
		WithRateLimit(0, 0),
	)

	text, err := client.Generate(context.Background(), "p", 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected ok, got %q", text)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestOllamaClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer server.Close()

	client := NewOllamaClient(WithBaseURL(server.URL), WithRetryDelay(time.Millisecond))
	if _, err := client.Generate(context.Background(), "p", 10); err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestOllamaClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(WithBaseURL(server.URL), WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	_, err := client.Generate(context.Background(), "p", 10)
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("expected max retries error, got %v", err)
	}
}

func TestOllamaClient_RateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
	}))
	defer server.Close()

	client := NewOllamaClient(WithBaseURL(server.URL), WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), "p", 10); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	// 3 requests at 20/s with burst 1 take at least 2 intervals of 50ms
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("requests were not rate limited: %v", elapsed)
	}
}

func TestOllamaClient_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "mistral:latest"}},
		})
	}))
	defer server.Close()

	if err := NewOllamaClient(WithBaseURL(server.URL)).Available(context.Background()); err != nil {
		t.Errorf("expected default model available, got %v", err)
	}
	err := NewOllamaClient(WithBaseURL(server.URL), WithModel("llama3")).Available(context.Background())
	if !errors.Is(err, ErrModelMissing) {
		t.Errorf("expected ErrModelMissing, got %v", err)
	}
}

func TestBuildRiskPrompt(t *testing.T) {
	a := &risk.Assessment{
		Kind:     exposure.KindCounterparty,
		Subject:  "Goldman Sachs",
		Score:    54.5,
		Level:    risk.BandMedium,
		KeyRisks: []string{"High counterparty concentration"},
		Breakdown: risk.Breakdown{
			AvgYearsToMaturity:        4.25,
			CounterpartyConcentration: 0.75,
			CurrencyConcentration:     1,
		},
		Exposure: &exposure.Exposure{TotalNotional: 1_234_567.891, NumSwaps: 3},
	}

	prompt := BuildRiskPrompt(a)
	for _, want := range []string{
		"Counterparty: Goldman Sachs",
		"54.50/100 (Medium)",
		"1,234,567.89 across 3 contracts",
		"Counterparty Concentration: 75.00%",
		"Currency Concentration: 100.00%",
		"4.25 years",
		"High counterparty concentration",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildSwapPrompt(t *testing.T) {
	if BuildSwapPrompt(nil) != "" {
		t.Error("expected empty prompt without rows")
	}

	id1, id2 := int64(1), int64(2)
	typ1, typ2 := domain.ObligationPremiumPayment, domain.ObligationProtectionPayment
	amt1, amt2 := 10_000.0, 1_000_000.0
	cond := "credit_event(GME) = true"
	gme := "GME"
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	base := domain.ObligationViewRow{
		ContractID:           "CDS1",
		Counterparty:         "Goldman Sachs",
		ReferenceEntity:      "GameStop",
		NotionalAmount:       1_000_000,
		Currency:             "USD",
		SwapType:             domain.SwapTypeCreditDefault,
		EffectiveDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaturityDate:         time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC),
		InstrumentIdentifier: &gme,
	}
	r1 := base
	r1.ObligationID, r1.ObligationType, r1.ObligationAmount, r1.DueDate = &id1, &typ1, &amt1, &due
	r2 := base
	r2.ObligationID, r2.ObligationType, r2.ObligationAmount, r2.TriggerCondition = &id2, &typ2, &amt2, &cond

	prompt := BuildSwapPrompt([]*domain.ObligationViewRow{&r1, &r2, &r2})
	for _, want := range []string{
		"Contract ID: CDS1",
		"Reference Entity/Security: GME",
		"Notional Amount: USD 1,000,000.00",
		"Due Date: 2024-04-01",
		"Due Date: Contingent",
		"Trigger Condition: credit_event(GME) = true",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if n := strings.Count(prompt, "- Obligation:"); n != 2 {
		t.Errorf("expected 2 obligations listed, got %d", n)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:           "0.00",
		999.5:       "999.50",
		1000:        "1,000.00",
		-1234567.25: "-1,234,567.25",
	}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Errorf("formatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
