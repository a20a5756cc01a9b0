// Package filter evaluates CEL expressions against events.
//
// Variables available to an expression:
//
//	description      string
//	start, end       timestamp
//	duration_minutes int
//	start_hour       int
//
// Example: `start_hour < 12 && description.contains("Review")`.
package filter

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/hrygo/agenda/store"
)

// Filter is a compiled event filter.
type Filter struct {
	expr    string
	program cel.Program
}

var env = mustEnv()

func mustEnv() *cel.Env {
	e, err := cel.NewEnv(
		cel.Variable("description", cel.StringType),
		cel.Variable("start", cel.TimestampType),
		cel.Variable("end", cel.TimestampType),
		cel.Variable("duration_minutes", cel.IntType),
		cel.Variable("start_hour", cel.IntType),
	)
	if err != nil {
		panic(err)
	}
	return e
}

// Compile parses and checks expr. The expression must evaluate to a bool.
func Compile(expr string) (*Filter, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build filter %q", expr)
	}
	return &Filter{expr: expr, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match reports whether the event satisfies the filter.
func (f *Filter) Match(e *store.Event) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"description":      e.Description,
		"start":            e.Start,
		"end":              e.End,
		"duration_minutes": int64(e.Duration().Minutes()),
		"start_hour":       int64(e.Start.Hour()),
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate filter %q", f.expr)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter %q returned %T", f.expr, out.Value())
	}
	return matched, nil
}

// Apply returns the events that satisfy the filter, keeping their order.
func (f *Filter) Apply(events []*store.Event) ([]*store.Event, error) {
	list := make([]*store.Event, 0, len(events))
	for _, e := range events {
		matched, err := f.Match(e)
		if err != nil {
			return nil, err
		}
		if matched {
			list = append(list, e)
		}
	}
	return list, nil
}
