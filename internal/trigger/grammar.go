// Package trigger parses and evaluates obligation trigger conditions such as
// "date >= 2025-04-01" or "credit_event(GME) = true".
package trigger

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Function arguments are lexed as raw text so entity names may contain
// spaces, punctuation and balanced parentheses: "Acme (Holdings) Inc".
var conditionLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Date", Pattern: `\d{4}-\d{2}-\d{2}`},
		{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
		{Name: "Op", Pattern: `>=|<=|!=|==|=|<|>`},
		{Name: "CallOpen", Pattern: `[A-Za-z_][A-Za-z0-9_]*\(`, Action: lexer.Push("Arg")},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
		{Name: "Punct", Pattern: `[()]`},
	},
	"Arg": {
		{Name: "ArgText", Pattern: `[^()]+`},
		{Name: "ArgOpen", Pattern: `\(`, Action: lexer.Push("Nested")},
		{Name: "CallClose", Pattern: `\)`, Action: lexer.Pop()},
	},
	"Nested": {
		{Name: "NestedText", Pattern: `[^()]+`},
		{Name: "NestedOpen", Pattern: `\(`, Action: lexer.Push("Nested")},
		{Name: "NestedClose", Pattern: `\)`, Action: lexer.Pop()},
	},
})

// Expression is a disjunction of conjunctions.
type Expression struct {
	Or []*AndTerm `parser:"@@ ( 'or' @@ )*"`
}

// AndTerm is a conjunction of factors.
type AndTerm struct {
	And []*Factor `parser:"@@ ( 'and' @@ )*"`
}

// Factor is a parenthesized expression or a comparison.
type Factor struct {
	Sub *Expression `parser:"  '(' @@ ')'"`
	Cmp *Comparison `parser:"| @@"`
}

// Comparison compares two operands.
type Comparison struct {
	Left  *Operand `parser:"@@"`
	Op    string   `parser:"@Op"`
	Right *Operand `parser:"@@"`
}

// Operand is a function call, a date, a number or an identifier.
type Operand struct {
	Call   *Call    `parser:"  @@"`
	Date   *string  `parser:"| @Date"`
	Number *float64 `parser:"| @Number"`
	Ident  *string  `parser:"| @Ident"`
}

// Call is a single-argument function call like performance(GME). The
// argument tokens are concatenated back into the original text.
type Call struct {
	Func string `parser:"@CallOpen"`
	Arg  string `parser:"@( ArgText | ArgOpen | NestedText | NestedOpen | NestedClose )* CallClose"`
}

// Name returns the lower-cased function name.
func (c *Call) Name() string {
	return strings.ToLower(strings.TrimSuffix(c.Func, "("))
}

// Argument returns the trimmed argument text.
func (c *Call) Argument() string {
	return strings.TrimSpace(c.Arg)
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(conditionLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Ident"),
	participle.UseLookahead(2),
)

// Parse parses a trigger condition.
func Parse(condition string) (*Expression, error) {
	expr, err := parser.ParseString("", condition)
	if err != nil {
		return nil, fmt.Errorf("parse trigger condition %q: %w", condition, err)
	}
	return expr, nil
}

// Validate reports whether condition is well formed.
func Validate(condition string) error {
	_, err := Parse(condition)
	return err
}
