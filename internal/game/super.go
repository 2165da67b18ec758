package game

import (
	"math/rand"
	"time"

	"github.com/twentyfour/arena-backend/internal/engine"
)

// superRules differs from classic in validation only: a solution may use any
// 2+ subset of the center instead of the whole hand. The relaxation is a
// deliberate per-mode design, not a shared-policy default.
type superRules struct{}

func (superRules) Name() Mode           { return ModeSuper }
func (superRules) TotalCards() int      { return 20 }
func (superRules) CardsPerDraw() int    { return 4 }
func (superRules) TransfersCards() bool { return true }

func (superRules) InitializeDecks(players []*Player, rng *rand.Rand) {
	for seat, p := range players {
		p.Deck = buildDeck(seat, 10)
		shuffleDeck(p.Deck, rng)
		p.Points = 0
	}
}

func (r superRules) DealCards(players []*Player) []Card {
	return dealEqualShare(players, r.CardsPerDraw()/len(players))
}

// ValidateSolution allows partial hands: at least two distinct center cards,
// chain evaluating to 24.
func (superRules) ValidateSolution(sol Solution, center []Card) bool {
	if len(sol.CardIDs) < 2 || len(sol.CardIDs) > len(center) {
		return false
	}
	values, ok := centerValues(sol.CardIDs, center)
	if !ok {
		return false
	}
	return engine.ValidateChain(values, sol.Operations).Valid
}

func (superRules) CalculateScore(Solution, []Card, time.Duration) float64 { return 1 }

func (r superRules) CheckWinCondition(players []*Player) *WinResult {
	return deckWinCheck(players, r.TotalCards())
}
