package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"swap-risk-lab/internal/domain"
)

// ErrUnknownFunction is returned for calls other than credit_event and
// performance.
var ErrUnknownFunction = errors.New("unknown trigger function")

// ErrTypeMismatch is returned when a comparison mixes incompatible operands.
var ErrTypeMismatch = errors.New("trigger operand type mismatch")

// Env is the state a condition is evaluated against. Entity keys are
// compared case-insensitively.
type Env struct {
	AsOf         time.Time
	CreditEvents map[string]bool
	Performance  map[string]float64
}

func (e Env) creditEvent(entity string) bool {
	for k, v := range e.CreditEvents {
		if domain.NormalizeName(k) == domain.NormalizeName(entity) {
			return v
		}
	}
	return false
}

func (e Env) performance(entity string) float64 {
	for k, v := range e.Performance {
		if domain.NormalizeName(k) == domain.NormalizeName(entity) {
			return v
		}
	}
	return 0
}

type kind int

const (
	kindDate kind = iota
	kindNumber
	kindBool
	kindString
)

type value struct {
	kind kind
	date time.Time
	num  float64
	b    bool
	str  string
}

// Evaluate evaluates the expression against env.
func (x *Expression) Evaluate(env Env) (bool, error) {
	for _, term := range x.Or {
		ok, err := term.evaluate(env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (t *AndTerm) evaluate(env Env) (bool, error) {
	for _, f := range t.And {
		var ok bool
		var err error
		if f.Sub != nil {
			ok, err = f.Sub.Evaluate(env)
		} else {
			ok, err = f.Cmp.evaluate(env)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c *Comparison) evaluate(env Env) (bool, error) {
	left, err := c.Left.value(env)
	if err != nil {
		return false, err
	}
	right, err := c.Right.value(env)
	if err != nil {
		return false, err
	}
	if left.kind != right.kind {
		return false, fmt.Errorf("%w: %s", ErrTypeMismatch, c.Op)
	}

	var cmp int
	switch left.kind {
	case kindDate:
		cmp = left.date.Compare(right.date)
	case kindNumber:
		switch {
		case left.num < right.num:
			cmp = -1
		case left.num > right.num:
			cmp = 1
		}
	case kindBool:
		if left.b != right.b {
			cmp = 1
		}
		if c.Op != "=" && c.Op != "==" && c.Op != "!=" {
			return false, fmt.Errorf("%w: %s on booleans", ErrTypeMismatch, c.Op)
		}
	case kindString:
		cmp = strings.Compare(strings.ToLower(left.str), strings.ToLower(right.str))
	}

	switch c.Op {
	case "=", "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", c.Op)
}

func (o *Operand) value(env Env) (value, error) {
	switch {
	case o.Call != nil:
		switch o.Call.Name() {
		case "credit_event":
			return value{kind: kindBool, b: env.creditEvent(o.Call.Argument())}, nil
		case "performance":
			return value{kind: kindNumber, num: env.performance(o.Call.Argument())}, nil
		}
		return value{}, fmt.Errorf("%w: %s", ErrUnknownFunction, o.Call.Name())
	case o.Date != nil:
		d, err := time.Parse("2006-01-02", *o.Date)
		if err != nil {
			return value{}, fmt.Errorf("invalid date %q: %w", *o.Date, err)
		}
		return value{kind: kindDate, date: d}, nil
	case o.Number != nil:
		return value{kind: kindNumber, num: *o.Number}, nil
	case o.Ident != nil:
		switch strings.ToLower(*o.Ident) {
		case "date", "today":
			y, m, d := env.AsOf.Date()
			return value{kind: kindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
		case "true":
			return value{kind: kindBool, b: true}, nil
		case "false":
			return value{kind: kindBool, b: false}, nil
		}
		return value{kind: kindString, str: *o.Ident}, nil
	}
	return value{}, errors.New("empty operand")
}

// Evaluate parses and evaluates condition in one step.
func Evaluate(condition string, env Env) (bool, error) {
	expr, err := Parse(condition)
	if err != nil {
		return false, err
	}
	return expr.Evaluate(env)
}

// Due returns the view rows whose trigger condition holds under env. Rows
// without a trigger and rows whose condition fails to parse or evaluate are
// left out.
func Due(rows []*domain.ObligationViewRow, env Env) []*domain.ObligationViewRow {
	var out []*domain.ObligationViewRow
	for _, r := range rows {
		if r.TriggerCondition == nil {
			continue
		}
		ok, err := Evaluate(*r.TriggerCondition, env)
		if err != nil || !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
