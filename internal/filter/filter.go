// Package filter applies JMESPath expressions to JSON response bodies.
package filter

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmespath/go-jmespath"
)

// Query is a compiled JMESPath expression.
type Query struct {
	expr string
	jp   *jmespath.JMESPath
}

// Compile parses expr.
func Compile(expr string) (*Query, error) {
	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expr, err)
	}
	return &Query{expr: expr, jp: jp}, nil
}

func (q *Query) String() string { return q.expr }

// Search evaluates the query against a JSON document and returns the
// selected value.
func (q *Query) Search(body []byte) (any, error) {
	var data any
	if err := sonic.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	result, err := q.jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to apply query '%s': %w", q.expr, err)
	}
	return result, nil
}

// Apply evaluates the query and renders the result as indented JSON. A
// string result is returned without quotes.
func (q *Query) Apply(body []byte) ([]byte, error) {
	result, err := q.Search(body)
	if err != nil {
		return nil, err
	}
	if s, ok := result.(string); ok {
		return []byte(s), nil
	}
	out, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render query result: %w", err)
	}
	return out, nil
}

// Apply compiles expr and applies it to body in one step.
func Apply(body []byte, expr string) ([]byte, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Apply(body)
}
