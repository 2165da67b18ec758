package engine

import (
	"math/rand"
	"strings"
	"testing"
)

func TestHasSolution(t *testing.T) {
	tests := []struct {
		values [4]float64
		want   bool
	}{
		{[4]float64{1, 5, 5, 5}, true},  // 5 × (5 - 1÷5)
		{[4]float64{4, 6, 1, 1}, true},  // 4 × 6 × 1 × 1
		{[4]float64{3, 3, 8, 8}, true},  // 8 ÷ (3 - 8÷3)
		{[4]float64{1, 1, 1, 1}, false}, // no combination reaches 24
		{[4]float64{1, 1, 1, 2}, false},
		{[4]float64{6, 6, 6, 6}, true}, // 6+6+6+6
	}
	for _, tt := range tests {
		if got := HasSolution(tt.values); got != tt.want {
			t.Errorf("HasSolution(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

// Same multiset in any order must give the same answer.
func TestHasSolutionOrderIndependent(t *testing.T) {
	orders := [][4]float64{
		{1, 5, 5, 5},
		{5, 1, 5, 5},
		{5, 5, 1, 5},
		{5, 5, 5, 1},
	}
	for _, o := range orders {
		if !HasSolution(o) {
			t.Errorf("HasSolution(%v) = false, want true", o)
		}
	}
	for _, o := range [][4]float64{{1, 1, 1, 1}, {1, 1, 1, 1}} {
		if HasSolution(o) {
			t.Errorf("HasSolution(%v) = true, want false", o)
		}
	}
}

func TestFindSolutions(t *testing.T) {
	sols := FindSolutions([4]float64{4, 6, 1, 1})
	if len(sols) == 0 {
		t.Fatal("no solutions found for solvable hand")
	}
	for _, s := range sols {
		if !strings.ContainsAny(s, "+-×÷") {
			t.Errorf("solution %q has no operator", s)
		}
	}
	if sols := FindSolutions([4]float64{1, 1, 1, 1}); len(sols) != 0 {
		t.Errorf("unsolvable hand produced %d solutions", len(sols))
	}
}

func TestHint(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if h := Hint([4]float64{4, 6, 1, 1}, rng); h == "" {
		t.Error("no hint for solvable hand")
	}
	if h := Hint([4]float64{1, 1, 1, 1}, rng); h != "" {
		t.Errorf("hint %q for unsolvable hand", h)
	}
}
