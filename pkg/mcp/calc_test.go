package mcp

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"2+2*3", 8},
		{"(2+2)*3", 12},
		{"10/4", 2.5},
		{"-3+5", 2},
		{"2*(3+4)-1", 13},
		{"1.5*2", 3},
		{" 7 - 2 ", 5},
		{"-(2+3)", -5},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr)
		if err != nil {
			t.Errorf("Evaluate(%q) failed: %v", tt.expr, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	bad := []string{
		"",
		"import os",
		"2+x",
		"1/0",
		"(2+3",
		"2+",
		"__builtins__",
		"2;3",
	}
	for _, expr := range bad {
		if _, err := Evaluate(expr); !errors.Is(err, ErrBadExpression) {
			t.Errorf("Evaluate(%q) expected ErrBadExpression, got %v", expr, err)
		}
	}
}
