package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/twentyfour/arena-backend/internal/game"
	"github.com/twentyfour/arena-backend/internal/metrics"
	"github.com/twentyfour/arena-backend/internal/session"
)

type stubPairer struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (s *stubPairer) CreateMatchForPair(mode game.Mode, ranked bool, a, b session.Participant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append(s.pairs, [2]string{a.Name, b.Name})
	return "room-test", nil
}

func (s *stubPairer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}

type stubRatings map[string]int

func (s stubRatings) CurrentRating(_ context.Context, name string) (int, error) {
	r, ok := s[name]
	if !ok {
		return 0, errors.New("unknown player")
	}
	return r, nil
}

type sentEvent struct {
	ConnID string
	Event  string
}

type eventRecorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *eventRecorder) Send(connID, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{ConnID: connID, Event: event})
}

func (r *eventRecorder) has(connID, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ConnID == connID && e.Event == event {
			return true
		}
	}
	return false
}

// deadRedis returns a client with nothing listening. Queue behavior must
// degrade to redis-less operation, which is exactly what these tests rely on.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
}

func newTestQueue(pairer Pairer, ratings RatingSource, rec *eventRecorder) *Queue {
	m := metrics.New(prometheus.NewRegistry())
	return NewQueue(DefaultConfig(), deadRedis(), pairer, ratings, rec, m, slog.Default())
}

func entry(conn, name string, mode game.Mode, waited time.Duration) Entry {
	return Entry{
		ConnID:     conn,
		Name:       name,
		Mode:       mode,
		EnqueuedAt: time.Now().Add(-waited),
	}
}

func TestJoinLeaveAndDedupe(t *testing.T) {
	rec := &eventRecorder{}
	q := newTestQueue(&stubPairer{}, nil, rec)
	ctx := context.Background()

	if err := q.Join(ctx, entry("c1", "alice", game.ModeClassic, 0), false); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !rec.has("c1", EvQueueJoined) {
		t.Error("no queue-joined event")
	}
	if err := q.Join(ctx, entry("c9", "alice", game.ModeClassic, 0), false); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("same name on second conn: %v, want ErrAlreadyQueued", err)
	}

	// Rejoining on the same conn moves pools instead of erroring.
	if err := q.Join(ctx, entry("c1", "alice", game.ModeClassic, 0), false); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if r, c := q.Depth(); r != 0 || c != 1 {
		t.Errorf("depth = %d/%d, want 0/1", r, c)
	}

	q.Leave(ctx, "c1")
	if !rec.has("c1", EvQueueLeft) {
		t.Error("no queue-left event")
	}
	if r, c := q.Depth(); r != 0 || c != 0 {
		t.Errorf("depth after leave = %d/%d, want 0/0", r, c)
	}
}

func TestPassPairsCasualByMode(t *testing.T) {
	rec := &eventRecorder{}
	pairer := &stubPairer{}
	q := newTestQueue(pairer, nil, rec)
	ctx := context.Background()

	q.Join(ctx, entry("c1", "alice", game.ModeClassic, time.Second), false)
	q.Join(ctx, entry("c2", "bob", game.ModeSuper, time.Second), false)
	q.pass(ctx)
	if pairer.count() != 0 {
		t.Fatal("mismatched modes were paired")
	}

	q.Join(ctx, entry("c3", "carol", game.ModeClassic, 0), false)
	q.pass(ctx)
	if pairer.count() != 1 {
		t.Fatalf("pairs = %d, want 1", pairer.count())
	}
	if !rec.has("c1", EvMatchFound) || !rec.has("c3", EvMatchFound) {
		t.Error("match-found not sent to both players")
	}
	if r, c := q.Depth(); r != 0 || c != 1 {
		t.Errorf("depth = %d/%d, want bob left alone", r, c)
	}
}

func TestRankedRangeWidensWithWait(t *testing.T) {
	rec := &eventRecorder{}
	pairer := &stubPairer{}
	ratings := stubRatings{"alice": 1000, "bob": 1500}
	q := newTestQueue(pairer, ratings, rec)
	ctx := context.Background()

	q.Join(ctx, entry("c1", "alice", game.ModeClassic, 0), true)
	q.Join(ctx, entry("c2", "bob", game.ModeClassic, 0), true)
	q.pass(ctx)
	if pairer.count() != 0 {
		t.Fatal("500-point gap paired inside the initial range")
	}

	// Backdate both waits past the widest step.
	q.mu.Lock()
	for _, e := range q.ranked {
		e.EnqueuedAt = time.Now().Add(-61 * time.Second)
	}
	q.mu.Unlock()
	q.pass(ctx)
	if pairer.count() != 1 {
		t.Fatal("widened range did not pair the long waiters")
	}
}

func TestRankedRangeGatesOnBothWaits(t *testing.T) {
	pairer := &stubPairer{}
	ratings := stubRatings{"alice": 1000, "bob": 1300}
	q := newTestQueue(pairer, ratings, &eventRecorder{})
	ctx := context.Background()

	// Only alice has waited long enough for a 300 gap.
	q.Join(ctx, Entry{ConnID: "c1", Name: "alice", Mode: game.ModeClassic, EnqueuedAt: time.Now().Add(-31 * time.Second)}, true)
	q.Join(ctx, Entry{ConnID: "c2", Name: "bob", Mode: game.ModeClassic, EnqueuedAt: time.Now()}, true)
	q.pass(ctx)
	if pairer.count() != 0 {
		t.Error("pair formed though one side's range was still narrow")
	}
}

func TestRegionBonusBreaksTies(t *testing.T) {
	pairer := &stubPairer{}
	ratings := stubRatings{"alice": 1000, "bob": 1010, "carol": 1040}
	q := newTestQueue(pairer, ratings, &eventRecorder{})
	ctx := context.Background()

	a := entry("c1", "alice", game.ModeClassic, 2*time.Second)
	a.Region = "eu"
	b := entry("c2", "bob", game.ModeClassic, time.Second)
	b.Region = "na"
	c := entry("c3", "carol", game.ModeClassic, 0)
	c.Region = "eu"
	q.Join(ctx, a, true)
	q.Join(ctx, b, true)
	q.Join(ctx, c, true)
	q.pass(ctx)

	pairer.mu.Lock()
	defer pairer.mu.Unlock()
	if len(pairer.pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairer.pairs))
	}
	got := pairer.pairs[0]
	if got[0] != "alice" || got[1] != "carol" {
		t.Errorf("paired %v, want alice with carol on region bonus", got)
	}
}

func TestAllowedRangeSteps(t *testing.T) {
	q := newTestQueue(&stubPairer{}, nil, &eventRecorder{})
	tests := []struct {
		waited time.Duration
		want   int
	}{
		{0, 100},
		{14 * time.Second, 100},
		{15 * time.Second, 200},
		{30 * time.Second, 400},
		{2 * time.Minute, 800},
	}
	for _, tt := range tests {
		if got := q.allowedRange(tt.waited); got != tt.want {
			t.Errorf("allowedRange(%v) = %d, want %d", tt.waited, got, tt.want)
		}
	}
}

func TestEstimateWait(t *testing.T) {
	q := newTestQueue(&stubPairer{}, nil, &eventRecorder{})
	ctx := context.Background()
	me := entry("me", "dave", game.ModeClassic, 0)

	if got := q.EstimateWait(me, false); got != 30*time.Second {
		t.Errorf("empty pool estimate = %v, want 30s", got)
	}
	q.Join(ctx, entry("c1", "alice", game.ModeClassic, 0), false)
	if got := q.EstimateWait(me, false); got != 15*time.Second {
		t.Errorf("one-player estimate = %v, want 15s", got)
	}
	q.Join(ctx, entry("c2", "bob", game.ModeClassic, 0), false)
	if got := q.EstimateWait(me, false); got != 5*time.Second {
		t.Errorf("two-player estimate = %v, want 5s", got)
	}
}

func TestEstimateWaitCountsOnlyCompatibles(t *testing.T) {
	q := newTestQueue(&stubPairer{}, nil, &eventRecorder{})
	ctx := context.Background()

	// Two waiters, but one plays a different mode and the other is far
	// outside a fresh joiner's 100-point range.
	q.Join(ctx, Entry{ConnID: "c1", Name: "alice", Mode: game.ModeSuper, Rating: 1200}, true)
	q.Join(ctx, Entry{ConnID: "c2", Name: "bob", Mode: game.ModeClassic, Rating: 1600}, true)

	me := Entry{ConnID: "me", Name: "dave", Mode: game.ModeClassic, Rating: 1200, EnqueuedAt: time.Now()}
	if got := q.EstimateWait(me, true); got != 30*time.Second {
		t.Errorf("incompatible-pool estimate = %v, want 30s", got)
	}

	q.Join(ctx, Entry{ConnID: "c3", Name: "carol", Mode: game.ModeClassic, Rating: 1250}, true)
	if got := q.EstimateWait(me, true); got != 15*time.Second {
		t.Errorf("one-compatible estimate = %v, want 15s", got)
	}

	// A long wait widens the range enough to reach bob.
	me.EnqueuedAt = time.Now().Add(-time.Minute)
	if got := q.EstimateWait(me, true); got != 5*time.Second {
		t.Errorf("widened-range estimate = %v, want 5s", got)
	}
}

func TestDisconnectDropsEntrySilently(t *testing.T) {
	rec := &eventRecorder{}
	q := newTestQueue(&stubPairer{}, nil, rec)
	ctx := context.Background()

	q.Join(ctx, entry("c1", "alice", game.ModeClassic, 0), false)
	q.Disconnect("c1")
	if _, c := q.Depth(); c != 0 {
		t.Errorf("casual depth = %d, want 0", c)
	}
	if rec.has("c1", EvQueueLeft) {
		t.Error("disconnect sent queue-left to a dead connection")
	}
}
