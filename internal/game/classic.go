package game

import (
	"math/rand"
	"time"
)

// classicRules: values 1-10, ten cards per player, full-hand solutions, one
// flat point per round, deck exhaustion decides the match.
type classicRules struct{}

func (classicRules) Name() Mode           { return ModeClassic }
func (classicRules) TotalCards() int      { return 20 }
func (classicRules) CardsPerDraw() int    { return 4 }
func (classicRules) TransfersCards() bool { return true }

func (classicRules) InitializeDecks(players []*Player, rng *rand.Rand) {
	for seat, p := range players {
		p.Deck = buildDeck(seat, 10)
		shuffleDeck(p.Deck, rng)
		p.Points = 0
	}
}

func (r classicRules) DealCards(players []*Player) []Card {
	return dealEqualShare(players, r.CardsPerDraw()/len(players))
}

func (classicRules) ValidateSolution(sol Solution, center []Card) bool {
	return validateFullHand(sol, center)
}

func (classicRules) CalculateScore(Solution, []Card, time.Duration) float64 { return 1 }

func (r classicRules) CheckWinCondition(players []*Player) *WinResult {
	return deckWinCheck(players, r.TotalCards())
}
