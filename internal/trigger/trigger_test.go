package trigger

import (
	"errors"
	"testing"
	"time"

	"swap-risk-lab/internal/domain"
)

func asOf(y int, m time.Month, d int) Env {
	return Env{AsOf: time.Date(y, m, d, 15, 30, 0, 0, time.UTC)}
}

func TestEvaluate_TimeBased(t *testing.T) {
	tests := []struct {
		cond string
		env  Env
		want bool
	}{
		{"date >= 2025-04-01", asOf(2025, 3, 31), false},
		{"date >= 2025-04-01", asOf(2025, 4, 1), true},
		{"date >= 2025-04-01", asOf(2025, 5, 1), true},
		{"date < 2025-04-01", asOf(2025, 3, 1), true},
		{"DATE >= 2025-04-01 AND date <= 2025-06-30", asOf(2025, 7, 1), false},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.cond, tt.env)
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", tt.cond, err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q) at %s = %v, want %v", tt.cond, tt.env.AsOf.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestEvaluate_CreditEventWithSpacedEntity(t *testing.T) {
	env := Env{CreditEvents: map[string]bool{"goldman sachs group": true}}

	got, err := Evaluate("credit_event(Goldman Sachs Group) = true", env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Error("expected credit event to fire")
	}

	got, err = Evaluate("credit_event(CDX.NA.IG) = true", env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got {
		t.Error("expected no credit event for CDX.NA.IG")
	}
}

func TestEvaluate_EntityWithParentheses(t *testing.T) {
	env := Env{
		CreditEvents: map[string]bool{"Acme (Holdings) Inc": true},
		Performance:  map[string]float64{"Foo (A (B)) Ltd": 0.05},
	}

	got, err := Evaluate("credit_event(Acme (Holdings) Inc) = true", env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Error("expected credit event to fire")
	}

	got, err = Evaluate("performance(Foo (A (B)) Ltd) != 0 and date >= 2025-01-01", Env{
		AsOf:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Performance: env.Performance,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Error("expected performance trigger to fire")
	}

	expr, err := Parse("credit_event(Acme (Holdings) Inc) = true")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if arg := expr.Or[0].And[0].Cmp.Left.Call.Argument(); arg != "Acme (Holdings) Inc" {
		t.Errorf("argument = %q", arg)
	}

	if err := Validate("credit_event(Acme (Holdings Inc) = true"); err == nil {
		t.Error("expected parse error for unbalanced parentheses")
	}
}

func TestEvaluate_Performance(t *testing.T) {
	env := Env{Performance: map[string]float64{"GME": -0.12}}

	got, err := Evaluate("performance(GME) != 0", env)
	if err != nil || !got {
		t.Errorf("performance(GME) != 0 = %v, %v; want true", got, err)
	}

	got, err = Evaluate("performance(AMC) != 0", env)
	if err != nil || got {
		t.Errorf("performance(AMC) != 0 = %v, %v; want false", got, err)
	}

	got, err = Evaluate("(performance(GME) < -0.1) or credit_event(GME) = true", env)
	if err != nil || !got {
		t.Errorf("grouped expression = %v, %v; want true", got, err)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	if _, err := Evaluate("dividend(GME) > 0", Env{}); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
	if _, err := Evaluate("date >= TBD", asOf(2025, 1, 1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if err := Validate("date >="); err == nil {
		t.Error("expected parse error for incomplete condition")
	}
}

func TestDue(t *testing.T) {
	cond := func(s string) *string { return &s }
	rows := []*domain.ObligationViewRow{
		{ContractID: "A", TriggerCondition: cond("date >= 2025-04-01")},
		{ContractID: "B", TriggerCondition: cond("date >= 2025-10-01")},
		{ContractID: "C", TriggerCondition: cond("credit_event(GME) = true")},
		{ContractID: "D"},
	}

	env := asOf(2025, 6, 1)
	env.CreditEvents = map[string]bool{"GME": true}

	due := Due(rows, env)
	if len(due) != 2 {
		t.Fatalf("expected 2 due rows, got %d", len(due))
	}
	if due[0].ContractID != "A" || due[1].ContractID != "C" {
		t.Errorf("unexpected due rows: %s, %s", due[0].ContractID, due[1].ContractID)
	}
}
