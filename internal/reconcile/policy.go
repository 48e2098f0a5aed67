package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
)

// Policy decides whether a cash variance is material. The rule is a CEL
// boolean expression over cash_difference, expected_cash, closing_cash and
// sales_total, e.g. `cash_difference < -50.0 || cash_difference > 50.0`.
// A zero Policy flags nothing.
type Policy struct {
	expr    string
	program cel.Program
	reject  bool
}

// NewPolicy compiles expr. An empty expression yields a policy that never flags.
// When reject is set, a flagged close is refused instead of only reported.
func NewPolicy(expr string, reject bool) (*Policy, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Policy{reject: reject}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("cash_difference", cel.DoubleType),
		cel.Variable("expected_cash", cel.DoubleType),
		cel.Variable("closing_cash", cel.DoubleType),
		cel.Variable("sales_total", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return nil, fmt.Errorf("compile variance policy: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("variance policy must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build variance policy: %w", err)
	}
	return &Policy{expr: expr, program: program, reject: reject}, nil
}

func (p *Policy) Expression() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// Rejects reports whether flagged variances should fail the close.
func (p *Policy) Rejects() bool {
	return p != nil && p.program != nil && p.reject
}

// Flags evaluates the rule for one close.
func (p *Policy) Flags(v Variance, closingCash, salesTotal decimal.Decimal) (bool, error) {
	if p == nil || p.program == nil {
		return false, nil
	}

	out, _, err := p.program.Eval(map[string]any{
		"cash_difference": v.CashDifference.InexactFloat64(),
		"expected_cash":   v.ExpectedCash.InexactFloat64(),
		"closing_cash":    closingCash.InexactFloat64(),
		"sales_total":     salesTotal.InexactFloat64(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate variance policy: %w", err)
	}
	flagged, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("variance policy returned %T, want bool", out.Value())
	}
	return flagged, nil
}
