// Package rating maintains per-player ELO ratings for ranked play: match
// updates, K-factor schedules, idle decay, tiers, and streak accounting.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/twentyfour/arena-backend/db"
)

const (
	BaseRating    = 1200
	FloorRating   = 400
	CeilingRating = 3000

	// PlacementGames is how many games a fresh account plays before its
	// tier is shown.
	PlacementGames = 10

	decayPoints   = 25
	decayInterval = 28 * 24 * time.Hour

	// ForfeitPenalty replaces the ELO-derived loss for the forfeiting
	// side. Flat so that quitting is never cheaper than playing out a
	// losing position.
	ForfeitPenalty = 30
)

var ErrNotFound = errors.New("rating: player not found")

// Store is the persistence behind the service. The postgres implementation
// is the production one; tests use an in-memory map.
type Store interface {
	GetPlayer(ctx context.Context, name string) (*db.PlayerRating, error)
	UpsertPlayer(ctx context.Context, p *db.PlayerRating) error
	InsertMatch(ctx context.Context, m *db.RankedMatch) error
	InsertSolve(ctx context.Context, s *db.PuzzleSolve) error
}

// MatchOutcome is one finished ranked match, by player name.
type MatchOutcome struct {
	RoomID     string
	Mode       string
	Winner     string
	Loser      string
	Reason     string
	Rounds     int
	DurationMs int64
	Forfeit    bool
}

// Change reports how one player's rating moved.
type Change struct {
	Name     string `json:"name"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
	Delta    int    `json:"delta"`
	PrevTier string `json:"prev_tier"`
	Tier     string `json:"tier"`
	Promoted bool   `json:"promoted"`
	Demoted  bool   `json:"demoted"`
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// CurrentRating returns the player's decayed rating, creating a fresh
// account at the base rating on first sight.
func (s *Service) CurrentRating(ctx context.Context, name string) (int, error) {
	p, err := s.load(ctx, name)
	if err != nil {
		return 0, err
	}
	return p.Rating, nil
}

// Profile is the public view of one player's standing.
type Profile struct {
	Name       string  `json:"name"`
	Rating     int     `json:"rating"`
	Peak       int     `json:"peak"`
	Tier       string  `json:"tier"`
	Placed     bool    `json:"placed"`
	Games      int     `json:"games"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRate    float64 `json:"win_rate"`
	WinStreak  int     `json:"win_streak"`
	BestStreak int     `json:"best_streak"`
}

func (s *Service) Profile(ctx context.Context, name string) (Profile, error) {
	p, err := s.load(ctx, name)
	if err != nil {
		return Profile{}, err
	}
	prof := Profile{
		Name:       p.Name,
		Rating:     p.Rating,
		Peak:       p.Peak,
		Tier:       TierFor(p.Rating, p.Games),
		Placed:     p.Games >= PlacementGames,
		Games:      p.Games,
		Wins:       p.Wins,
		Losses:     p.Losses,
		WinStreak:  p.WinStreak,
		BestStreak: p.BestStreak,
	}
	if p.Games > 0 {
		prof.WinRate = float64(p.Wins) / float64(p.Games)
	}
	return prof, nil
}

// ApplyMatchOutcome moves both ratings by the standard ELO expectation and
// persists the match record. A forfeit costs the loser an extra flat
// penalty; the winner's gain is unchanged.
func (s *Service) ApplyMatchOutcome(ctx context.Context, o MatchOutcome) (winner, loser Change, err error) {
	w, err := s.load(ctx, o.Winner)
	if err != nil {
		return Change{}, Change{}, fmt.Errorf("load winner: %w", err)
	}
	l, err := s.load(ctx, o.Loser)
	if err != nil {
		return Change{}, Change{}, fmt.Errorf("load loser: %w", err)
	}

	expWin := expectedScore(w.Rating, l.Rating)
	expLose := expectedScore(l.Rating, w.Rating)
	winDelta := int(math.Round(float64(kFactor(w.Games)) * (1 - expWin)))
	loseDelta := -int(math.Round(float64(kFactor(l.Games)) * expLose))
	if o.Forfeit {
		loseDelta = -ForfeitPenalty
	}

	winner = s.apply(w, winDelta, true)
	loser = s.apply(l, loseDelta, false)

	if err := s.store.UpsertPlayer(ctx, w); err != nil {
		return Change{}, Change{}, fmt.Errorf("save winner: %w", err)
	}
	if err := s.store.UpsertPlayer(ctx, l); err != nil {
		return Change{}, Change{}, fmt.Errorf("save loser: %w", err)
	}
	if err := s.store.InsertMatch(ctx, &db.RankedMatch{
		RoomID:      o.RoomID,
		Mode:        o.Mode,
		Winner:      o.Winner,
		Loser:       o.Loser,
		WinnerDelta: winner.Delta,
		LoserDelta:  loser.Delta,
		Reason:      o.Reason,
		Rounds:      o.Rounds,
		DurationMs:  o.DurationMs,
		PlayedAt:    s.now(),
	}); err != nil {
		return Change{}, Change{}, fmt.Errorf("record match: %w", err)
	}

	s.logger.Info("ratings updated", "winner", o.Winner, "winner_delta", winner.Delta,
		"loser", o.Loser, "loser_delta", loser.Delta, "forfeit", o.Forfeit)
	return winner, loser, nil
}

// apply mutates one player's row for a result and reports the change.
func (s *Service) apply(p *db.PlayerRating, delta int, won bool) Change {
	before := p.Rating
	beforeTier := TierFor(before, p.Games)

	p.Rating = clamp(p.Rating + delta)
	p.Games++
	if won {
		p.Wins++
		p.WinStreak++
		if p.WinStreak > p.BestStreak {
			p.BestStreak = p.WinStreak
		}
	} else {
		p.Losses++
		p.WinStreak = 0
	}
	if p.Rating > p.Peak {
		p.Peak = p.Rating
	}
	p.LastPlayedAt = s.now()

	afterTier := TierFor(p.Rating, p.Games)
	return Change{
		Name:     p.Name,
		Before:   before,
		After:    p.Rating,
		Delta:    p.Rating - before,
		PrevTier: beforeTier,
		Tier:     afterTier,
		Promoted: tierIndex(afterTier) > tierIndex(beforeTier),
		Demoted:  tierIndex(afterTier) < tierIndex(beforeTier),
	}
}

// tierIndex orders tier names for promotion checks. Unranked sits below
// every real tier so finishing placements reads as a promotion.
func tierIndex(name string) int {
	for i, t := range tiers {
		if t.name == name {
			return i
		}
	}
	return -1
}

// RecordSolve persists one correct puzzle solution. It satisfies the match
// engine's recorder interface and never blocks a match on the database.
func (s *Service) RecordSolve(values []int, username string, solveTimeMs int64, solution string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	err := s.store.InsertSolve(ctx, &db.PuzzleSolve{
		Username:    username,
		Cards:       strings.Join(parts, ","),
		Solution:    solution,
		SolveTimeMs: solveTimeMs,
		SolvedAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn("solve record dropped", "player", username, "error", err)
	}
}

// load fetches a row, creating a fresh one on miss and applying any idle
// decay owed since the last look.
func (s *Service) load(ctx context.Context, name string) (*db.PlayerRating, error) {
	p, err := s.store.GetPlayer(ctx, name)
	if errors.Is(err, ErrNotFound) {
		p = &db.PlayerRating{
			Name:        name,
			Rating:      BaseRating,
			Peak:        BaseRating,
			LastDecayAt: s.now(),
			CreatedAt:   s.now(),
		}
		if err := s.store.UpsertPlayer(ctx, p); err != nil {
			return nil, fmt.Errorf("create player %s: %w", name, err)
		}
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if s.decay(p) {
		if err := s.store.UpsertPlayer(ctx, p); err != nil {
			return nil, fmt.Errorf("persist decay for %s: %w", name, err)
		}
	}
	return p, nil
}

// decay docks points for idleness, one step per full interval, never below
// the base rating. Reports whether anything changed.
func (s *Service) decay(p *db.PlayerRating) bool {
	if p.Rating <= BaseRating {
		return false
	}
	since := p.LastPlayedAt
	if p.LastDecayAt.After(since) {
		since = p.LastDecayAt
	}
	periods := int(s.now().Sub(since) / decayInterval)
	if periods <= 0 {
		return false
	}
	decayed := p.Rating - decayPoints*periods
	if decayed < BaseRating {
		decayed = BaseRating
	}
	s.logger.Info("idle decay applied", "player", p.Name, "from", p.Rating, "to", decayed)
	p.Rating = decayed
	p.LastDecayAt = s.now()
	return true
}

// expectedScore is the logistic win expectation of a against b.
func expectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// kFactor shrinks as an account accumulates games, settling veterans while
// letting new accounts find their level fast.
func kFactor(games int) int {
	switch {
	case games < PlacementGames:
		return 40
	case games < 30:
		return 30
	case games < 100:
		return 20
	default:
		return 15
	}
}

func clamp(rating int) int {
	if rating < FloorRating {
		return FloorRating
	}
	if rating > CeilingRating {
		return CeilingRating
	}
	return rating
}

// Tier bands, lowest first.
var tiers = []struct {
	name string
	min  int
}{
	{"iron", 0},
	{"bronze", 800},
	{"silver", 1000},
	{"gold", 1200},
	{"platinum", 1400},
	{"diamond", 1600},
	{"master", 1900},
	{"grandmaster", 2200},
}

// TierFor maps a rating to its tier name. Accounts still in placement have
// no tier yet.
func TierFor(rating, games int) string {
	if games < PlacementGames {
		return "unranked"
	}
	name := tiers[0].name
	for _, t := range tiers {
		if rating >= t.min {
			name = t.name
		}
	}
	return name
}
