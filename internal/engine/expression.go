package engine

import (
	"errors"
	"fmt"
	"math"
)

// Target is the value every solution must reach.
const Target = 24.0

// Epsilon is the tolerance used for every floating-point comparison in the
// engine and the rulesets. Card arithmetic goes through fractions (e.g.
// 8/(3-8/3)), so exact equality is never correct here.
const Epsilon = 1e-4

var ErrDivisionByZero = errors.New("division by zero")

// Operator is one of the four arithmetic operators players can chain.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "×"
	OpDiv Operator = "÷"
)

var Operators = []Operator{OpAdd, OpSub, OpMul, OpDiv}

// Valid reports whether op is one of the four supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// Evaluate applies op to left and right. Division by anything within Epsilon
// of zero fails with ErrDivisionByZero.
func Evaluate(op Operator, left, right float64) (float64, error) {
	switch op {
	case OpAdd:
		return left + right, nil
	case OpSub:
		return left - right, nil
	case OpMul:
		return left * right, nil
	case OpDiv:
		if math.Abs(right) < Epsilon {
			return 0, ErrDivisionByZero
		}
		return left / right, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}

// Operation is one step of a submitted solution: the operator, its operands
// and the result the player claims for this step.
type Operation struct {
	Operator Operator `json:"operator"`
	Left     float64  `json:"left"`
	Right    float64  `json:"right"`
	Result   float64  `json:"result"`
}

// Validation is the outcome of checking a submitted operation chain.
type Validation struct {
	Valid  bool
	Result float64
	Err    error
}

var (
	errWrongOperationCount = errors.New("operation count must be one less than card count")
	errResultMismatch      = errors.New("declared result does not match computed value")
	errCardUsageMismatch   = errors.New("operations do not use exactly the claimed card values")
	errNotTarget           = errors.New("final result is not 24")
)

// ValidateChain checks a chain of operations against the claimed card values.
// The chain must consume every claimed value exactly once: each operation
// takes its operands either from the remaining card values or from the result
// of an earlier operation, so reusing a card or inventing a number fails.
func ValidateChain(cardValues []float64, ops []Operation) Validation {
	if len(cardValues) < 2 || len(ops) != len(cardValues)-1 {
		return Validation{Err: errWrongOperationCount}
	}

	// Multiset of numbers still available as operands. Results of earlier
	// operations join the pool, claimed cards start in it.
	pool := make([]float64, len(cardValues))
	copy(pool, cardValues)

	var last float64
	for _, op := range ops {
		if !op.Operator.Valid() {
			return Validation{Err: fmt.Errorf("unknown operator %q", op.Operator)}
		}
		if !take(&pool, op.Left) {
			return Validation{Err: errCardUsageMismatch}
		}
		if !take(&pool, op.Right) {
			return Validation{Err: errCardUsageMismatch}
		}
		got, err := Evaluate(op.Operator, op.Left, op.Right)
		if err != nil {
			return Validation{Err: err}
		}
		if math.Abs(got-op.Result) > Epsilon {
			return Validation{Err: errResultMismatch}
		}
		pool = append(pool, got)
		last = got
	}

	// Exactly one number remains: the chain's final result.
	if len(pool) != 1 {
		return Validation{Err: errCardUsageMismatch}
	}
	if math.Abs(last-Target) > Epsilon {
		return Validation{Result: last, Err: errNotTarget}
	}
	return Validation{Valid: true, Result: last}
}

// take removes one element within Epsilon of v from the pool, reporting
// whether one was found.
func take(pool *[]float64, v float64) bool {
	for i, p := range *pool {
		if math.Abs(p-v) <= Epsilon {
			(*pool)[i] = (*pool)[len(*pool)-1]
			*pool = (*pool)[:len(*pool)-1]
			return true
		}
	}
	return false
}
