package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/twentyfour/arena-backend/internal/engine"
)

// Ruleset is the per-mode capability interface. Each mode is a flat strategy
// struct; the state machine never branches on the mode itself.
type Ruleset interface {
	Name() Mode
	// TotalCards is the number of cards in play across both decks.
	TotalCards() int
	// CardsPerDraw is how many cards a round deals to the center in total.
	CardsPerDraw() int
	// TransfersCards reports whether round cards move to the round loser.
	// Extended mode keeps cards with their owners and scores points instead.
	TransfersCards() bool

	// InitializeDecks populates and shuffles both players' decks and resets
	// any per-mode counters.
	InitializeDecks(players []*Player, rng *rand.Rand)
	// DealCards pops an equal share of CardsPerDraw from each player's deck.
	// The caller retries the whole deal when the hand is unsolvable.
	DealCards(players []*Player) []Card
	// ValidateSolution decides whether the submitted chain is a legal,
	// correct solution over the current center cards.
	ValidateSolution(sol Solution, center []Card) bool
	// CalculateScore is the score awarded for a correct solution.
	CalculateScore(sol Solution, center []Card, elapsed time.Duration) float64
	// CheckWinCondition returns the match result once a player has won,
	// nil while the match continues.
	CheckWinCondition(players []*Player) *WinResult
}

// NewRuleset returns the strategy for mode.
func NewRuleset(mode Mode) Ruleset {
	switch mode {
	case ModeSuper:
		return superRules{}
	case ModeExtended:
		return extendedRules{}
	default:
		return classicRules{}
	}
}

// buildDeck fills a player's deck with one card per value in [1, maxValue].
func buildDeck(seat int, maxValue int) []Card {
	deck := make([]Card, 0, maxValue)
	for v := 1; v <= maxValue; v++ {
		deck = append(deck, Card{ID: uuid.NewString(), Value: v, Owner: seat})
	}
	return deck
}

// shuffleDeck is an in-place Fisher-Yates shuffle.
func shuffleDeck(deck []Card, rng *rand.Rand) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// dealEqualShare pops perPlayer cards off the top of each deck.
func dealEqualShare(players []*Player, perPlayer int) []Card {
	var center []Card
	for _, p := range players {
		n := perPlayer
		if n > len(p.Deck) {
			n = len(p.Deck)
		}
		center = append(center, p.Deck[:n]...)
		p.Deck = p.Deck[n:]
	}
	return center
}

// centerValues resolves the claimed card ids against the center, returning
// false when an id is missing or claimed twice.
func centerValues(cardIDs []string, center []Card) ([]float64, bool) {
	used := make(map[string]bool, len(cardIDs))
	values := make([]float64, 0, len(cardIDs))
	for _, id := range cardIDs {
		if used[id] {
			return nil, false
		}
		found := false
		for _, c := range center {
			if c.ID == id {
				values = append(values, float64(c.Value))
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		used[id] = true
	}
	return values, true
}

// validateFullHand is the classic/extended policy: the solution must consume
// every center card exactly once and evaluate to 24.
func validateFullHand(sol Solution, center []Card) bool {
	if len(sol.CardIDs) != len(center) {
		return false
	}
	values, ok := centerValues(sol.CardIDs, center)
	if !ok {
		return false
	}
	return engine.ValidateChain(values, sol.Operations).Valid
}

// deckWinCheck is the classic/super policy: an empty deck wins, holding the
// whole pool loses.
func deckWinCheck(players []*Player, total int) *WinResult {
	if len(players) < 2 {
		return nil
	}
	for i, p := range players {
		if len(p.Deck) == 0 {
			return &WinResult{WinnerID: p.ID, Reason: ReasonNoCards}
		}
		if len(p.Deck) == total {
			return &WinResult{WinnerID: players[1-i].ID, Reason: ReasonOpponentAllCards}
		}
	}
	return nil
}

const pointsToWin = 4

// highCardBonusThreshold is the extended-mode value above which a card earns
// a half-point bonus.
const highCardBonusThreshold = 10

func highCardBonus(sol Solution, center []Card) float64 {
	bonus := 0.0
	for _, id := range sol.CardIDs {
		for _, c := range center {
			if c.ID == id && c.Value > highCardBonusThreshold {
				bonus += 0.5
				break
			}
		}
	}
	return bonus
}
