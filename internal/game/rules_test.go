package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/twentyfour/arena-backend/internal/engine"
)

func testPlayers() []*Player {
	return []*Player{
		{ID: "p1", Name: "alice", ConnID: "c1"},
		{ID: "p2", Name: "bob", ConnID: "c2"},
	}
}

func TestInitializeDecks(t *testing.T) {
	tests := []struct {
		mode     Mode
		perDeck  int
		maxValue int
	}{
		{ModeClassic, 10, 10},
		{ModeSuper, 10, 10},
		{ModeExtended, 20, 20},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			rules := NewRuleset(tt.mode)
			players := testPlayers()
			players[0].Points = 3
			rules.InitializeDecks(players, rand.New(rand.NewSource(7)))

			for seat, p := range players {
				if len(p.Deck) != tt.perDeck {
					t.Fatalf("seat %d deck size = %d, want %d", seat, len(p.Deck), tt.perDeck)
				}
				if p.Points != 0 {
					t.Errorf("seat %d points = %d, want 0", seat, p.Points)
				}
				seen := make(map[int]bool)
				ids := make(map[string]bool)
				for _, c := range p.Deck {
					if c.Value < 1 || c.Value > tt.maxValue {
						t.Errorf("card value %d out of range", c.Value)
					}
					if seen[c.Value] {
						t.Errorf("duplicate value %d in deck", c.Value)
					}
					if ids[c.ID] {
						t.Errorf("duplicate card id %s", c.ID)
					}
					if c.Owner != seat {
						t.Errorf("card owner = %d, want %d", c.Owner, seat)
					}
					seen[c.Value] = true
					ids[c.ID] = true
				}
			}
		})
	}
}

func TestDealCardsPopsEqually(t *testing.T) {
	rules := NewRuleset(ModeClassic)
	players := testPlayers()
	rules.InitializeDecks(players, rand.New(rand.NewSource(1)))

	center := rules.DealCards(players)
	if len(center) != 4 {
		t.Fatalf("dealt %d cards, want 4", len(center))
	}
	for _, p := range players {
		if len(p.Deck) != 8 {
			t.Errorf("deck size after deal = %d, want 8", len(p.Deck))
		}
	}
	// Conservation across the deal.
	if total := len(players[0].Deck) + len(players[1].Deck) + len(center); total != rules.TotalCards() {
		t.Errorf("cards in play = %d, want %d", total, rules.TotalCards())
	}
}

func centerFrom(values ...int) []Card {
	center := make([]Card, len(values))
	for i, v := range values {
		center[i] = Card{ID: string(rune('a' + i)), Value: v, Owner: i % 2}
	}
	return center
}

func TestClassicValidateSolutionRequiresFullHand(t *testing.T) {
	rules := NewRuleset(ModeClassic)
	center := centerFrom(1, 5, 5, 5)

	full := Solution{
		CardIDs: []string{"a", "b", "c", "d"},
		Operations: []engine.Operation{
			{Operator: engine.OpDiv, Left: 1, Right: 5, Result: 0.2},
			{Operator: engine.OpSub, Left: 5, Right: 0.2, Result: 4.8},
			{Operator: engine.OpMul, Left: 5, Right: 4.8, Result: 24},
		},
	}
	if !rules.ValidateSolution(full, center) {
		t.Error("full-hand solution rejected")
	}

	partial := Solution{
		CardIDs:    []string{"b", "c"},
		Operations: []engine.Operation{{Operator: engine.OpMul, Left: 5, Right: 5, Result: 25}},
	}
	if rules.ValidateSolution(partial, center) {
		t.Error("classic accepted a partial-hand solution")
	}
}

func TestSuperValidateSolutionAllowsPartialHand(t *testing.T) {
	rules := NewRuleset(ModeSuper)
	center := centerFrom(4, 6, 9, 2)

	partial := Solution{
		CardIDs:    []string{"a", "b"},
		Operations: []engine.Operation{{Operator: engine.OpMul, Left: 4, Right: 6, Result: 24}},
	}
	if !rules.ValidateSolution(partial, center) {
		t.Error("super rejected a 2-card solution")
	}

	// Claiming the same card twice is never legal.
	dup := Solution{
		CardIDs: []string{"a", "a", "b"},
		Operations: []engine.Operation{
			{Operator: engine.OpAdd, Left: 4, Right: 4, Result: 8},
			{Operator: engine.OpMul, Left: 8, Right: 6, Result: 48},
		},
	}
	if rules.ValidateSolution(dup, center) {
		t.Error("super accepted a duplicated card id")
	}

	// One card is below the 2-card minimum.
	single := Solution{CardIDs: []string{"a"}}
	if rules.ValidateSolution(single, center) {
		t.Error("super accepted a single-card solution")
	}

	// Cards not on the table cannot be claimed.
	foreign := Solution{
		CardIDs:    []string{"z", "b"},
		Operations: []engine.Operation{{Operator: engine.OpMul, Left: 4, Right: 6, Result: 24}},
	}
	if rules.ValidateSolution(foreign, center) {
		t.Error("super accepted a card that is not on the table")
	}
}

func TestCalculateScore(t *testing.T) {
	classic := NewRuleset(ModeClassic)
	if got := classic.CalculateScore(Solution{}, nil, time.Second); got != 1 {
		t.Errorf("classic score = %v, want 1", got)
	}

	extended := NewRuleset(ModeExtended)
	center := centerFrom(12, 15, 3, 4)
	sol := Solution{CardIDs: []string{"a", "b", "c", "d"}}
	// Two cards above 10: 1 + 2×0.5.
	if got := extended.CalculateScore(sol, center, time.Second); got != 2 {
		t.Errorf("extended score = %v, want 2", got)
	}
}

func TestDeckWinConditions(t *testing.T) {
	rules := NewRuleset(ModeClassic)
	players := testPlayers()

	players[0].Deck = nil
	players[1].Deck = make([]Card, 20)
	win := rules.CheckWinCondition(players)
	if win == nil || win.WinnerID != "p1" || win.Reason != ReasonNoCards {
		t.Errorf("empty deck: got %+v, want p1 wins by no_cards", win)
	}

	players[0].Deck = make([]Card, 5)
	players[1].Deck = make([]Card, 15)
	if win := rules.CheckWinCondition(players); win != nil {
		t.Errorf("mid-game: got %+v, want nil", win)
	}
}

func TestExtendedWinByPoints(t *testing.T) {
	rules := NewRuleset(ModeExtended)
	players := testPlayers()
	players[0].Deck = nil // deck state is irrelevant in extended mode
	players[1].Points = 4

	win := rules.CheckWinCondition(players)
	if win == nil || win.WinnerID != "p2" || win.Reason != ReasonReachedPoints {
		t.Errorf("got %+v, want p2 wins by reached_4_points", win)
	}
}
