package rating

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/twentyfour/arena-backend/db"
)

type memStore struct {
	players map[string]*db.PlayerRating
	matches []*db.RankedMatch
	solves  []*db.PuzzleSolve
}

func newMemStore() *memStore {
	return &memStore{players: make(map[string]*db.PlayerRating)}
}

func (m *memStore) GetPlayer(_ context.Context, name string) (*db.PlayerRating, error) {
	p, ok := m.players[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpsertPlayer(_ context.Context, p *db.PlayerRating) error {
	cp := *p
	m.players[p.Name] = &cp
	return nil
}

func (m *memStore) InsertMatch(_ context.Context, match *db.RankedMatch) error {
	m.matches = append(m.matches, match)
	return nil
}

func (m *memStore) InsertSolve(_ context.Context, s *db.PuzzleSolve) error {
	m.solves = append(m.solves, s)
	return nil
}

func (m *memStore) seed(name string, rating, games int) {
	m.players[name] = &db.PlayerRating{
		Name:         name,
		Rating:       rating,
		Peak:         rating,
		Games:        games,
		LastPlayedAt: time.Now(),
		LastDecayAt:  time.Now(),
	}
}

func newTestService(store Store) *Service {
	return NewService(store, slog.Default())
}

func TestNewPlayerStartsAtBase(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	got, err := svc.CurrentRating(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CurrentRating: %v", err)
	}
	if got != BaseRating {
		t.Errorf("rating = %d, want %d", got, BaseRating)
	}
	if _, ok := store.players["alice"]; !ok {
		t.Error("fresh account was not persisted")
	}
}

func TestEqualRatingsExchangeTen(t *testing.T) {
	store := newMemStore()
	store.seed("alice", 1500, 50)
	store.seed("bob", 1500, 50)
	svc := newTestService(store)

	w, l, err := svc.ApplyMatchOutcome(context.Background(), MatchOutcome{
		RoomID: "r1", Mode: "classic", Winner: "alice", Loser: "bob", Reason: "no_cards",
	})
	if err != nil {
		t.Fatalf("ApplyMatchOutcome: %v", err)
	}
	if w.After != 1510 || w.Delta != 10 {
		t.Errorf("winner = %+v, want 1510 (+10)", w)
	}
	if l.After != 1490 || l.Delta != -10 {
		t.Errorf("loser = %+v, want 1490 (-10)", l)
	}
	if len(store.matches) != 1 {
		t.Fatalf("matches recorded = %d, want 1", len(store.matches))
	}
	if rec := store.matches[0]; rec.Winner != "alice" || rec.WinnerDelta != 10 || rec.LoserDelta != -10 {
		t.Errorf("match record = %+v", rec)
	}
}

func TestKFactorSchedule(t *testing.T) {
	tests := []struct {
		games int
		want  int
	}{
		{0, 40},
		{9, 40},
		{10, 30},
		{29, 30},
		{30, 20},
		{99, 20},
		{100, 15},
		{500, 15},
	}
	for _, tt := range tests {
		if got := kFactor(tt.games); got != tt.want {
			t.Errorf("kFactor(%d) = %d, want %d", tt.games, got, tt.want)
		}
	}
}

func TestForfeitTakesFlatPenalty(t *testing.T) {
	store := newMemStore()
	store.seed("alice", 1500, 50)
	// Bob heavily outrates alice; a played-out loss would cost him far
	// less than the flat penalty does.
	store.seed("bob", 2000, 50)
	svc := newTestService(store)

	w, l, err := svc.ApplyMatchOutcome(context.Background(), MatchOutcome{
		Winner: "alice", Loser: "bob", Reason: "forfeit", Forfeit: true,
	})
	if err != nil {
		t.Fatalf("ApplyMatchOutcome: %v", err)
	}
	if w.Delta <= 0 {
		t.Errorf("winner delta = %d, want a normal ELO gain", w.Delta)
	}
	if l.Delta != -ForfeitPenalty {
		t.Errorf("loser delta = %d, want flat %d", l.Delta, -ForfeitPenalty)
	}
}

func TestRatingBounds(t *testing.T) {
	store := newMemStore()
	store.seed("giant", 2995, 200)
	store.seed("dwarf", 405, 200)
	svc := newTestService(store)

	w, l, err := svc.ApplyMatchOutcome(context.Background(), MatchOutcome{
		Winner: "giant", Loser: "dwarf", Forfeit: true,
	})
	if err != nil {
		t.Fatalf("ApplyMatchOutcome: %v", err)
	}
	if w.After > CeilingRating {
		t.Errorf("winner = %d, above ceiling", w.After)
	}
	if l.After < FloorRating {
		t.Errorf("loser = %d, below floor", l.After)
	}
	if l.After != FloorRating {
		t.Errorf("loser = %d, want clamp at %d", l.After, FloorRating)
	}
}

func TestUnderdogGainsMore(t *testing.T) {
	store := newMemStore()
	store.seed("underdog", 1200, 50)
	store.seed("favorite", 1600, 50)
	svc := newTestService(store)

	w, l, err := svc.ApplyMatchOutcome(context.Background(), MatchOutcome{
		Winner: "underdog", Loser: "favorite",
	})
	if err != nil {
		t.Fatalf("ApplyMatchOutcome: %v", err)
	}
	if w.Delta <= 10 {
		t.Errorf("underdog delta = %d, want more than an even exchange", w.Delta)
	}
	if -l.Delta != w.Delta {
		t.Errorf("asymmetric exchange at equal K: +%d vs %d", w.Delta, l.Delta)
	}
}

func TestStreaksAndPeak(t *testing.T) {
	store := newMemStore()
	store.seed("alice", 1500, 50)
	store.seed("bob", 1500, 50)
	svc := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.ApplyMatchOutcome(ctx, MatchOutcome{Winner: "alice", Loser: "bob"}); err != nil {
			t.Fatalf("match %d: %v", i, err)
		}
	}
	if _, _, err := svc.ApplyMatchOutcome(ctx, MatchOutcome{Winner: "bob", Loser: "alice"}); err != nil {
		t.Fatalf("upset: %v", err)
	}

	prof, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.WinStreak != 0 {
		t.Errorf("streak = %d, want reset after loss", prof.WinStreak)
	}
	if prof.BestStreak != 3 {
		t.Errorf("best streak = %d, want 3", prof.BestStreak)
	}
	if prof.Peak <= 1500 {
		t.Errorf("peak = %d, want above the seed after three wins", prof.Peak)
	}
	if prof.Peak < prof.Rating {
		t.Errorf("peak %d below current %d", prof.Peak, prof.Rating)
	}
}

func TestIdleDecay(t *testing.T) {
	store := newMemStore()
	store.seed("rusty", 1600, 50)
	store.players["rusty"].LastPlayedAt = time.Now().Add(-60 * 24 * time.Hour)
	store.players["rusty"].LastDecayAt = time.Time{}
	svc := newTestService(store)
	ctx := context.Background()

	got, err := svc.CurrentRating(ctx, "rusty")
	if err != nil {
		t.Fatalf("CurrentRating: %v", err)
	}
	// Two full idle periods.
	if got != 1550 {
		t.Errorf("decayed rating = %d, want 1550", got)
	}

	// The decay marker advanced: an immediate second read costs nothing.
	again, err := svc.CurrentRating(ctx, "rusty")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if again != 1550 {
		t.Errorf("repeat read decayed again: %d", again)
	}
}

func TestDecayStopsAtBase(t *testing.T) {
	store := newMemStore()
	store.seed("rusty", 1210, 50)
	store.players["rusty"].LastPlayedAt = time.Now().Add(-365 * 24 * time.Hour)
	store.players["rusty"].LastDecayAt = time.Time{}
	svc := newTestService(store)

	got, err := svc.CurrentRating(context.Background(), "rusty")
	if err != nil {
		t.Fatalf("CurrentRating: %v", err)
	}
	if got != BaseRating {
		t.Errorf("rating = %d, want base floor %d", got, BaseRating)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		rating int
		games  int
		want   string
	}{
		{1500, 5, "unranked"},
		{700, 20, "iron"},
		{800, 20, "bronze"},
		{1100, 20, "silver"},
		{1200, 20, "gold"},
		{1400, 20, "platinum"},
		{1700, 20, "diamond"},
		{1850, 20, "diamond"},
		{1900, 20, "master"},
		{2000, 20, "master"},
		{2200, 20, "grandmaster"},
		{3000, 20, "grandmaster"},
	}
	for _, tt := range tests {
		if got := TierFor(tt.rating, tt.games); got != tt.want {
			t.Errorf("TierFor(%d, %d) = %q, want %q", tt.rating, tt.games, got, tt.want)
		}
	}
}

func TestTierChangeFlags(t *testing.T) {
	store := newMemStore()
	store.seed("alice", 1395, 50)
	store.seed("bob", 1203, 50)
	svc := newTestService(store)

	w, l, err := svc.ApplyMatchOutcome(context.Background(), MatchOutcome{Winner: "alice", Loser: "bob"})
	if err != nil {
		t.Fatalf("ApplyMatchOutcome: %v", err)
	}
	if !w.Promoted || w.Tier != "platinum" || w.PrevTier != "gold" {
		t.Errorf("winner change = %+v, want gold to platinum promotion", w)
	}
	if l.Promoted {
		t.Errorf("loser flagged as promoted: %+v", l)
	}
	if !l.Demoted || l.Tier != "silver" {
		t.Errorf("loser change = %+v, want demotion to silver", l)
	}
	if w.Demoted {
		t.Errorf("winner flagged as demoted: %+v", w)
	}
}

func TestRecordSolve(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	svc.RecordSolve([]int{1, 5, 5, 5}, "alice", 4200, "1 ÷ 5 = 0.2; 5 - 0.2 = 4.8; 5 × 4.8 = 24")
	if len(store.solves) != 1 {
		t.Fatalf("solves recorded = %d, want 1", len(store.solves))
	}
	rec := store.solves[0]
	if rec.Cards != "1,5,5,5" || rec.Username != "alice" || rec.SolveTimeMs != 4200 {
		t.Errorf("solve record = %+v", rec)
	}
}
