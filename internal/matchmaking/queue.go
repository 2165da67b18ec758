// Package matchmaking pairs queued players into matches. Pools live in
// memory; redis tracks queue membership and recent-opponent cooldowns so
// rematch avoidance survives a restart.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/twentyfour/arena-backend/internal/game"
	"github.com/twentyfour/arena-backend/internal/metrics"
	"github.com/twentyfour/arena-backend/internal/session"
)

var ErrAlreadyQueued = errors.New("matchmaking: player already queued")

// Outbound event names.
const (
	EvQueueJoined = "queue-joined"
	EvQueueLeft   = "queue-left"
	EvMatchFound  = "match-found"
)

// Pairer starts a match for two queued players. The session registry
// implements it.
type Pairer interface {
	CreateMatchForPair(mode game.Mode, ranked bool, a, b session.Participant) (string, error)
}

// RatingSource looks up a player's current rating for ranked pairing.
type RatingSource interface {
	CurrentRating(ctx context.Context, name string) (int, error)
}

// Entry is one waiting player.
type Entry struct {
	ConnID     string
	Name       string
	Mode       game.Mode
	Region     string
	Rating     int
	EnqueuedAt time.Time
}

// RangeStep widens the acceptable rating gap after a wait threshold.
type RangeStep struct {
	After time.Duration
	Range int
}

type Config struct {
	PassInterval   time.Duration
	RangeSteps     []RangeStep
	RegionBonus    int
	RankedCooldown time.Duration
	CasualCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		PassInterval: 2 * time.Second,
		RangeSteps: []RangeStep{
			{After: 0, Range: 100},
			{After: 15 * time.Second, Range: 200},
			{After: 30 * time.Second, Range: 400},
			{After: 60 * time.Second, Range: 800},
		},
		RegionBonus:    50,
		RankedCooldown: 30 * time.Minute,
		CasualCooldown: 5 * time.Minute,
	}
}

// Queue holds the ranked and casual pools and runs the periodic pairing
// pass.
type Queue struct {
	mu     sync.Mutex
	ranked []*Entry
	casual []*Entry

	cfg     Config
	rdb     *redis.Client
	pairer  Pairer
	ratings RatingSource
	sender  session.Sender
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewQueue(cfg Config, rdb *redis.Client, pairer Pairer, ratings RatingSource, sender session.Sender, m *metrics.Metrics, logger *slog.Logger) *Queue {
	return &Queue{
		cfg:     cfg,
		rdb:     rdb,
		pairer:  pairer,
		ratings: ratings,
		sender:  sender,
		metrics: m,
		logger:  logger,
	}
}

// Run drives pairing passes until the context ends.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.PassInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.pass(ctx)
		}
	}
}

type queueJoinedPayload struct {
	Pool          string `json:"pool"`
	Position      int    `json:"position"`
	EstimatedWait string `json:"estimated_wait"`
}

// Join adds a player to one pool, silently leaving the other first. Ranked
// entries get their rating resolved here so the pairing pass never blocks on
// a lookup.
func (q *Queue) Join(ctx context.Context, e Entry, ranked bool) error {
	pool := poolName(ranked)
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	if ranked && q.ratings != nil {
		rating, err := q.ratings.CurrentRating(ctx, e.Name)
		if err != nil {
			return fmt.Errorf("resolve rating for %s: %w", e.Name, err)
		}
		e.Rating = rating
	}

	q.mu.Lock()
	q.removeLocked(e.ConnID)
	for _, entries := range [][]*Entry{q.ranked, q.casual} {
		for _, other := range entries {
			if other.Name == e.Name {
				q.mu.Unlock()
				return ErrAlreadyQueued
			}
		}
	}
	if ranked {
		q.ranked = append(q.ranked, &e)
	} else {
		q.casual = append(q.casual, &e)
	}
	position := len(q.pool(ranked))
	q.mu.Unlock()
	q.gauge()

	if err := q.rdb.SAdd(ctx, memberKey(pool), e.Name).Err(); err != nil {
		q.logger.Warn("queue membership write failed", "pool", pool, "error", err)
	}
	q.logger.Info("player queued", "player", e.Name, "pool", pool, "rating", e.Rating)
	q.sender.Send(e.ConnID, EvQueueJoined, queueJoinedPayload{
		Pool:          pool,
		Position:      position,
		EstimatedWait: q.EstimateWait(e, ranked).String(),
	})
	return nil
}

// Leave removes a connection from whichever pool holds it.
func (q *Queue) Leave(ctx context.Context, connID string) {
	q.mu.Lock()
	removed, ranked := q.removeLocked(connID)
	q.mu.Unlock()
	if removed == nil {
		return
	}
	q.gauge()
	pool := poolName(ranked)
	if err := q.rdb.SRem(ctx, memberKey(pool), removed.Name).Err(); err != nil {
		q.logger.Warn("queue membership delete failed", "pool", pool, "error", err)
	}
	q.sender.Send(connID, EvQueueLeft, nil)
}

// Disconnect drops a vanished connection without sending anything back.
func (q *Queue) Disconnect(connID string) {
	q.mu.Lock()
	removed, ranked := q.removeLocked(connID)
	q.mu.Unlock()
	if removed != nil {
		q.gauge()
		pool := poolName(ranked)
		if err := q.rdb.SRem(context.Background(), memberKey(pool), removed.Name).Err(); err != nil {
			q.logger.Warn("queue membership delete failed", "pool", pool, "error", err)
		}
	}
}

// EstimateWait forecasts from how many compatible opponents are already
// waiting: same pool, same mode, and for ranked a rating gap inside the
// caller's current search range.
func (q *Queue) EstimateWait(e Entry, ranked bool) time.Duration {
	allowed := q.allowedRange(time.Since(e.EnqueuedAt))
	q.mu.Lock()
	n := 0
	for _, other := range q.pool(ranked) {
		if other.ConnID == e.ConnID || other.Mode != e.Mode {
			continue
		}
		if ranked && abs(other.Rating-e.Rating) > allowed {
			continue
		}
		n++
	}
	q.mu.Unlock()
	switch {
	case n >= 2:
		return 5 * time.Second
	case n == 1:
		return 15 * time.Second
	default:
		return 30 * time.Second
	}
}

// Depth reports pool sizes, ranked then casual.
func (q *Queue) Depth() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ranked), len(q.casual)
}

// pass pairs as many compatible players as it can, oldest waiter first.
func (q *Queue) pass(ctx context.Context) {
	for _, ranked := range []bool{true, false} {
		for _, pair := range q.selectPairs(ctx, ranked) {
			q.startMatch(ctx, pair[0], pair[1], ranked)
		}
	}
	q.gauge()
}

func (q *Queue) selectPairs(ctx context.Context, ranked bool) [][2]*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	pool := q.pool(ranked)
	sort.Slice(pool, func(i, j int) bool { return pool[i].EnqueuedAt.Before(pool[j].EnqueuedAt) })

	now := time.Now()
	taken := make(map[*Entry]bool)
	var pairs [][2]*Entry
	for _, a := range pool {
		if taken[a] {
			continue
		}
		var best *Entry
		bestScore := 0
		for _, b := range pool {
			if b == a || taken[b] || b.Mode != a.Mode {
				continue
			}
			if ranked {
				gap := abs(a.Rating - b.Rating)
				if gap > q.allowedRange(now.Sub(a.EnqueuedAt)) || gap > q.allowedRange(now.Sub(b.EnqueuedAt)) {
					continue
				}
			}
			if q.onCooldown(ctx, a.Name, b.Name) {
				continue
			}
			score := abs(a.Rating - b.Rating)
			if a.Region != "" && a.Region == b.Region {
				score -= q.cfg.RegionBonus
			}
			if best == nil || score < bestScore {
				best, bestScore = b, score
			}
		}
		if best != nil {
			taken[a], taken[best] = true, true
			pairs = append(pairs, [2]*Entry{a, best})
		}
	}

	remaining := pool[:0]
	for _, e := range pool {
		if !taken[e] {
			remaining = append(remaining, e)
		}
	}
	q.setPool(ranked, remaining)
	return pairs
}

type matchFoundPayload struct {
	RoomID   string    `json:"room_id"`
	Mode     game.Mode `json:"mode"`
	Ranked   bool      `json:"ranked"`
	Opponent string    `json:"opponent"`
}

func (q *Queue) startMatch(ctx context.Context, a, b *Entry, ranked bool) {
	roomID, err := q.pairer.CreateMatchForPair(a.Mode, ranked,
		session.Participant{ConnID: a.ConnID, Name: a.Name},
		session.Participant{ConnID: b.ConnID, Name: b.Name})
	if err != nil {
		q.logger.Error("paired match failed", "a", a.Name, "b", b.Name, "error", err)
		return
	}

	q.setCooldown(ctx, a.Name, b.Name, ranked)
	pool := poolName(ranked)
	if err := q.rdb.SRem(ctx, memberKey(pool), a.Name, b.Name).Err(); err != nil {
		q.logger.Warn("queue membership delete failed", "pool", pool, "error", err)
	}
	q.logger.Info("match made", "room", roomID, "a", a.Name, "b", b.Name,
		"pool", pool, "gap", abs(a.Rating-b.Rating))

	q.sender.Send(a.ConnID, EvMatchFound, matchFoundPayload{RoomID: roomID, Mode: a.Mode, Ranked: ranked, Opponent: b.Name})
	q.sender.Send(b.ConnID, EvMatchFound, matchFoundPayload{RoomID: roomID, Mode: b.Mode, Ranked: ranked, Opponent: a.Name})
}

// allowedRange widens with time waited so long waits trade quality for speed.
func (q *Queue) allowedRange(waited time.Duration) int {
	allowed := 0
	for _, step := range q.cfg.RangeSteps {
		if waited >= step.After {
			allowed = step.Range
		}
	}
	return allowed
}

// onCooldown reports whether the two players met too recently. Redis being
// down degrades to allowing the rematch rather than stalling the queue.
func (q *Queue) onCooldown(ctx context.Context, a, b string) bool {
	n, err := q.rdb.Exists(ctx, cooldownKey(a, b)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			q.logger.Warn("cooldown lookup failed", "error", err)
		}
		return false
	}
	return n > 0
}

func (q *Queue) setCooldown(ctx context.Context, a, b string, ranked bool) {
	ttl := q.cfg.CasualCooldown
	if ranked {
		ttl = q.cfg.RankedCooldown
	}
	if err := q.rdb.Set(ctx, cooldownKey(a, b), 1, ttl).Err(); err != nil {
		q.logger.Warn("cooldown write failed", "error", err)
	}
}

func (q *Queue) gauge() {
	r, c := q.Depth()
	q.metrics.QueueDepth.WithLabelValues("ranked").Set(float64(r))
	q.metrics.QueueDepth.WithLabelValues("casual").Set(float64(c))
}

func (q *Queue) pool(ranked bool) []*Entry {
	if ranked {
		return q.ranked
	}
	return q.casual
}

func (q *Queue) setPool(ranked bool, pool []*Entry) {
	if ranked {
		q.ranked = pool
	} else {
		q.casual = pool
	}
}

func (q *Queue) removeLocked(connID string) (*Entry, bool) {
	for poolIdx, pool := range []*[]*Entry{&q.ranked, &q.casual} {
		for i, e := range *pool {
			if e.ConnID == connID {
				*pool = append((*pool)[:i], (*pool)[i+1:]...)
				return e, poolIdx == 0
			}
		}
	}
	return nil, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func poolName(ranked bool) string {
	if ranked {
		return "ranked"
	}
	return "casual"
}

func memberKey(pool string) string {
	return "mm:queue:" + pool
}

// cooldownKey is order-independent so either player hitting the pair works.
func cooldownKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return "mm:recent:" + a + ":" + b
}
