package game

import (
	"math/rand"
	"time"
)

// extendedRules: values 1-20, twenty cards per player, full-hand solutions
// with a half-point bonus per high card. Cards never leave their owners;
// the first player to four points wins, so deck-based win checks are
// skipped entirely.
type extendedRules struct{}

func (extendedRules) Name() Mode           { return ModeExtended }
func (extendedRules) TotalCards() int      { return 40 }
func (extendedRules) CardsPerDraw() int    { return 4 }
func (extendedRules) TransfersCards() bool { return false }

func (extendedRules) InitializeDecks(players []*Player, rng *rand.Rand) {
	for seat, p := range players {
		p.Deck = buildDeck(seat, 20)
		shuffleDeck(p.Deck, rng)
		p.Points = 0
	}
}

func (r extendedRules) DealCards(players []*Player) []Card {
	return dealEqualShare(players, r.CardsPerDraw()/len(players))
}

func (extendedRules) ValidateSolution(sol Solution, center []Card) bool {
	return validateFullHand(sol, center)
}

func (extendedRules) CalculateScore(sol Solution, center []Card, _ time.Duration) float64 {
	return 1 + highCardBonus(sol, center)
}

func (extendedRules) CheckWinCondition(players []*Player) *WinResult {
	for _, p := range players {
		if p.Points >= pointsToWin {
			return &WinResult{WinnerID: p.ID, Reason: ReasonReachedPoints}
		}
	}
	return nil
}
