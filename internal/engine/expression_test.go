package engine

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		op    Operator
		left  float64
		right float64
		want  float64
	}{
		{OpMul, 5, 5, 25},
		{OpSub, 25, 1, 24},
		{OpAdd, 3, 8, 11},
		{OpDiv, 8, 3, 8.0 / 3.0},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.op, tt.left, tt.right)
		if err != nil {
			t.Fatalf("Evaluate(%v %v %v): %v", tt.left, tt.op, tt.right, err)
		}
		if math.Abs(got-tt.want) > Epsilon {
			t.Errorf("Evaluate(%v %v %v) = %v, want %v", tt.left, tt.op, tt.right, got, tt.want)
		}
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	if _, err := Evaluate(OpDiv, 5, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("dividing by 0: got %v, want ErrDivisionByZero", err)
	}
	// Anything within epsilon of zero counts as zero.
	if _, err := Evaluate(OpDiv, 5, 1e-6); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("dividing by 1e-6: got %v, want ErrDivisionByZero", err)
	}
}

func TestValidateChain(t *testing.T) {
	// Full-hand chain for [1,5,5,5]: 5 × (5 - 1÷5) = 24.
	ops := []Operation{
		{Operator: OpDiv, Left: 1, Right: 5, Result: 0.2},
		{Operator: OpSub, Left: 5, Right: 0.2, Result: 4.8},
		{Operator: OpMul, Left: 5, Right: 4.8, Result: 24},
	}
	v := ValidateChain([]float64{1, 5, 5, 5}, ops)
	if !v.Valid {
		t.Fatalf("full-hand chain rejected: %v", v.Err)
	}
	if math.Abs(v.Result-24) > Epsilon {
		t.Errorf("result = %v, want 24", v.Result)
	}
}

func TestValidateChainPartialHand(t *testing.T) {
	// Two-card solutions are legal at this layer; the ruleset decides
	// whether partial hands are allowed.
	ops := []Operation{{Operator: OpMul, Left: 4, Right: 6, Result: 24}}
	if v := ValidateChain([]float64{4, 6}, ops); !v.Valid {
		t.Fatalf("2-card chain rejected: %v", v.Err)
	}
}

func TestValidateChainRejections(t *testing.T) {
	tests := []struct {
		name  string
		cards []float64
		ops   []Operation
	}{
		{
			name:  "wrong final result",
			cards: []float64{2, 3},
			ops:   []Operation{{Operator: OpMul, Left: 2, Right: 3, Result: 6}},
		},
		{
			name:  "declared result lies",
			cards: []float64{4, 6},
			ops:   []Operation{{Operator: OpMul, Left: 4, Right: 6, Result: 25}},
		},
		{
			name:  "reuses a card value",
			cards: []float64{3, 8, 8, 1},
			ops: []Operation{
				{Operator: OpMul, Left: 3, Right: 8, Result: 24},
				{Operator: OpMul, Left: 3, Right: 8, Result: 24},
				{Operator: OpMul, Left: 1, Right: 24, Result: 24},
			},
		},
		{
			name:  "fabricates a value not in hand",
			cards: []float64{2, 2},
			ops:   []Operation{{Operator: OpMul, Left: 4, Right: 6, Result: 24}},
		},
		{
			name:  "operation count mismatch",
			cards: []float64{4, 6, 1},
			ops:   []Operation{{Operator: OpMul, Left: 4, Right: 6, Result: 24}},
		},
		{
			name:  "division by zero inside chain",
			cards: []float64{5, 0, 24, 1},
			ops: []Operation{
				{Operator: OpDiv, Left: 5, Right: 0, Result: 0},
				{Operator: OpMul, Left: 24, Right: 1, Result: 24},
				{Operator: OpAdd, Left: 24, Right: 0, Result: 24},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := ValidateChain(tt.cards, tt.ops); v.Valid {
				t.Errorf("chain accepted, want rejection")
			}
		})
	}
}

// The orphaned-result case: two independent operations over four cards leave
// two numbers in the pool, which is not a single chained solution.
func TestValidateChainOrphanedResult(t *testing.T) {
	ops := []Operation{
		{Operator: OpMul, Left: 4, Right: 6, Result: 24},
		{Operator: OpAdd, Left: 1, Right: 1, Result: 2},
		{Operator: OpSub, Left: 24, Right: 0, Result: 24},
	}
	if v := ValidateChain([]float64{4, 6, 1, 1}, ops); v.Valid {
		t.Error("chain with fabricated 0 operand accepted")
	}
}
