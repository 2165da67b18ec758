package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// The five binary-tree shapes over four leaves a, b, c, d:
//
//	((a∘b)∘c)∘d   (a∘(b∘c))∘d   a∘((b∘c)∘d)   a∘(b∘(c∘d))   (a∘b)∘(c∘d)
//
// Together with all 24 leaf permutations and 4³ operator choices this covers
// every expression over a four-card hand, so the solver is exhaustive.
type shape func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error)

var shapes = []shape{
	func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error) {
		ab, err := Evaluate(o1, a, b)
		if err != nil {
			return 0, "", err
		}
		abc, err := Evaluate(o2, ab, c)
		if err != nil {
			return 0, "", err
		}
		r, err := Evaluate(o3, abc, d)
		return r, fmt.Sprintf("((%s %s %s) %s %s) %s %s", f(a), o1, f(b), o2, f(c), o3, f(d)), err
	},
	func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error) {
		bc, err := Evaluate(o2, b, c)
		if err != nil {
			return 0, "", err
		}
		abc, err := Evaluate(o1, a, bc)
		if err != nil {
			return 0, "", err
		}
		r, err := Evaluate(o3, abc, d)
		return r, fmt.Sprintf("(%s %s (%s %s %s)) %s %s", f(a), o1, f(b), o2, f(c), o3, f(d)), err
	},
	func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error) {
		bc, err := Evaluate(o2, b, c)
		if err != nil {
			return 0, "", err
		}
		bcd, err := Evaluate(o3, bc, d)
		if err != nil {
			return 0, "", err
		}
		r, err := Evaluate(o1, a, bcd)
		return r, fmt.Sprintf("%s %s ((%s %s %s) %s %s)", f(a), o1, f(b), o2, f(c), o3, f(d)), err
	},
	func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error) {
		cd, err := Evaluate(o3, c, d)
		if err != nil {
			return 0, "", err
		}
		bcd, err := Evaluate(o2, b, cd)
		if err != nil {
			return 0, "", err
		}
		r, err := Evaluate(o1, a, bcd)
		return r, fmt.Sprintf("%s %s (%s %s (%s %s %s))", f(a), o1, f(b), o2, f(c), o3, f(d)), err
	},
	func(a, b, c, d float64, o1, o2, o3 Operator) (float64, string, error) {
		ab, err := Evaluate(o1, a, b)
		if err != nil {
			return 0, "", err
		}
		cd, err := Evaluate(o3, c, d)
		if err != nil {
			return 0, "", err
		}
		r, err := Evaluate(o2, ab, cd)
		return r, fmt.Sprintf("(%s %s %s) %s (%s %s %s)", f(a), o1, f(b), o2, f(c), o3, f(d)), err
	},
}

func f(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%g", v)
}

// HasSolution reports whether the four values can reach 24. It tries every
// permutation, operator assignment and tree shape, short-circuiting on the
// first hit, and is deterministic for a given multiset regardless of order.
func HasSolution(values [4]float64) bool {
	found := false
	walk(values, func(r float64, _ string) bool {
		if math.Abs(r-Target) <= Epsilon {
			found = true
			return false
		}
		return true
	})
	return found
}

// FindSolutions returns every distinct solution expression for the hand.
// Distinctness is by rendered expression string, not by algebraic identity.
func FindSolutions(values [4]float64) []string {
	seen := make(map[string]struct{})
	var out []string
	walk(values, func(r float64, expr string) bool {
		if math.Abs(r-Target) <= Epsilon {
			if _, dup := seen[expr]; !dup {
				seen[expr] = struct{}{}
				out = append(out, expr)
			}
		}
		return true
	})
	return out
}

// Hint returns one solution chosen uniformly at random, or "" when the hand
// is unsolvable.
func Hint(values [4]float64, rng *rand.Rand) string {
	sols := FindSolutions(values)
	if len(sols) == 0 {
		return ""
	}
	return sols[rng.Intn(len(sols))]
}

// walk visits every candidate expression, passing its value and rendering to
// visit. Returning false from visit stops the walk.
func walk(values [4]float64, visit func(result float64, expr string) bool) {
	for _, p := range permute4(values) {
		for _, o1 := range Operators {
			for _, o2 := range Operators {
				for _, o3 := range Operators {
					for _, s := range shapes {
						r, expr, err := s(p[0], p[1], p[2], p[3], o1, o2, o3)
						if err != nil {
							continue
						}
						if !visit(r, expr) {
							return
						}
					}
				}
			}
		}
	}
}

// permute4 returns all 24 orderings of the four values.
func permute4(v [4]float64) [][4]float64 {
	out := make([][4]float64, 0, 24)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if j == i {
				continue
			}
			for k := 0; k < 4; k++ {
				if k == i || k == j {
					continue
				}
				l := 6 - i - j - k
				out = append(out, [4]float64{v[i], v[j], v[k], v[l]})
			}
		}
	}
	return out
}
