package game

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/twentyfour/arena-backend/internal/engine"
)

// Timings are the state machine's timer windows. All of them are cancelable
// deferred callbacks, never blocking sleeps.
type Timings struct {
	ForfeitWindow    time.Duration
	ReplayWindow     time.Duration
	RoundRestart     time.Duration
	SoloRoundRestart time.Duration
	RedealRetry      time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ForfeitWindow:    30 * time.Second,
		ReplayWindow:     15 * time.Second,
		RoundRestart:     3 * time.Second,
		SoloRoundRestart: 2500 * time.Millisecond,
		RedealRetry:      1500 * time.Millisecond,
	}
}

// Hooks are callbacks the state machine fires on transitions it initiates
// itself (timer-driven or internal), so the session layer can broadcast
// them. Hooks run without the room lock held and must not be nil.
type Hooks struct {
	OnRoundStarted func(round int, center []Card)
	OnRedeal       func()
	OnRoundEnded   func(outcome RoundOutcome)
	OnReplayEnded  func()
	OnGameOver     func(result WinResult)
}

// SolveRecorder persists puzzle solve times. Calls are fire-and-forget: the
// implementation owns retries and the match never waits on it.
type SolveRecorder interface {
	RecordSolve(values []int, username string, solveTimeMs int64, solution string)
}

// Room owns one match's mutable state. All mutation happens under the
// room's own lock; the session layer only calls public methods and reads
// snapshots, never the live fields.
type Room struct {
	ID     string
	Mode   Mode
	Solo   bool
	Ranked bool

	mu         sync.Mutex
	rules      Ruleset
	state      State
	players    []*Player
	center     []Card
	round      int
	scores     map[string]float64
	claimantID string
	roundStart time.Time
	skipVotes  map[string]bool
	stats      Stats
	result     *WinResult

	forfeitTimers map[string]*time.Timer
	replayTimer   *time.Timer
	pendingTimer  *time.Timer

	hooks   Hooks
	timings Timings
	rng     *rand.Rand
	logger  *slog.Logger
	solves  SolveRecorder
}

// NewRoom creates a room in WAITING with empty seats.
func NewRoom(id string, mode Mode, solo, ranked bool, hooks Hooks, timings Timings, solves SolveRecorder, logger *slog.Logger, rng *rand.Rand) *Room {
	return &Room{
		ID:            id,
		Mode:          mode,
		Solo:          solo,
		Ranked:        ranked,
		rules:         NewRuleset(mode),
		state:         StateWaiting,
		scores:        make(map[string]float64),
		skipVotes:     make(map[string]bool),
		stats:         newStats(),
		forfeitTimers: make(map[string]*time.Timer),
		hooks:         hooks,
		timings:       timings,
		rng:           rng,
		logger:        logger.With("room", id, "mode", mode),
		solves:        solves,
	}
}

// run executes fn under the room lock; closures fn appends to after are
// invoked once the lock is released. Hooks go through after so they can
// safely call back into the room.
func (r *Room) run(fn func(after *[]func()) error) error {
	var after []func()
	r.mu.Lock()
	err := fn(&after)
	r.mu.Unlock()
	for _, f := range after {
		f()
	}
	return err
}

// Seat adds a player to the room. Only legal before the game starts.
func (r *Room) Seat(p *Player) error {
	return r.run(func(*[]func()) error {
		if r.state != StateWaiting {
			return ErrWrongState
		}
		if len(r.players) >= r.seatLimit() {
			return ErrRoomFull
		}
		r.players = append(r.players, p)
		return nil
	})
}

func (r *Room) seatLimit() int {
	if r.Solo {
		return 1
	}
	return 2
}

// SetReady flips a seated player's ready flag.
func (r *Room) SetReady(playerID string, ready bool) error {
	return r.run(func(*[]func()) error {
		if r.state != StateWaiting {
			return ErrWrongState
		}
		p := r.playerLocked(playerID)
		if p == nil {
			return ErrNotInRoom
		}
		p.Ready = ready
		return nil
	})
}

// Start begins the match: resets counters, builds the decks and deals the
// first round. Requires every seat filled and ready.
func (r *Room) Start() error {
	return r.run(func(after *[]func()) error {
		if r.state != StateWaiting {
			return ErrWrongState
		}
		if len(r.players) != r.seatLimit() {
			return ErrPreconditionFailed
		}
		for _, p := range r.players {
			if !p.Ready {
				return ErrPreconditionFailed
			}
		}
		r.scores = make(map[string]float64)
		r.stats = newStats()
		r.stats.StartedAt = time.Now()
		r.round = 0
		r.rules.InitializeDecks(r.players, r.rng)
		r.logger.Info("match started", "players", len(r.players))
		r.startRoundLocked(after)
		return nil
	})
}

// startRoundLocked deals the next hand, redealing until it is solvable. The
// solvability check is the guarantee that no unsolvable hand ever reaches
// PLAYING.
func (r *Room) startRoundLocked(after *[]func()) {
	if r.state == StateGameOver {
		return
	}

	perPlayer := r.rules.CardsPerDraw() / len(r.players)
	for _, p := range r.players {
		if len(p.Deck) < perPlayer {
			r.gameOverLocked(r.insufficientCardsResult(), after)
			return
		}
	}

	dealt := r.rules.DealCards(r.players)
	if len(dealt) == 4 && !r.solvable(dealt) {
		// Hand back, reshuffle, retry shortly. Not a player-facing error.
		r.returnToOwnersLocked(dealt)
		r.stats.Redeals++
		r.logger.Debug("unsolvable hand redealt", "round", r.round+1)
		*after = append(*after, func() {
			if r.hooks.OnRedeal != nil {
				r.hooks.OnRedeal()
			}
		})
		r.schedulePending(r.timings.RedealRetry, func() {
			r.run(func(after *[]func()) error {
				r.startRoundLocked(after)
				return nil
			})
		})
		return
	}

	r.center = dealt
	r.round++
	r.stats.RoundsPlayed++
	r.claimantID = ""
	r.skipVotes = make(map[string]bool)
	r.state = StatePlaying
	r.roundStart = time.Now()

	round, center := r.round, append([]Card(nil), dealt...)
	*after = append(*after, func() {
		if r.hooks.OnRoundStarted != nil {
			r.hooks.OnRoundStarted(round, center)
		}
	})
}

func (r *Room) solvable(cards []Card) bool {
	var values [4]float64
	for i, c := range cards {
		values[i] = float64(c.Value)
	}
	return engine.HasSolution(values)
}

// insufficientCardsResult ends the match by card-count comparison: the
// player left short of a full draw loses.
func (r *Room) insufficientCardsResult() WinResult {
	if len(r.players) < 2 {
		return WinResult{WinnerID: r.players[0].ID, Reason: ReasonInsufficient}
	}
	winner := r.players[0]
	if len(r.players[1].Deck) > len(winner.Deck) {
		winner = r.players[1]
	}
	return WinResult{WinnerID: winner.ID, Reason: ReasonInsufficient}
}

// Hint returns one rendered solution for the hand on the table. Solo rooms
// only; a hint in a competitive match would decide the round.
func (r *Room) Hint() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Solo {
		return "", ErrWrongState
	}
	if r.state != StatePlaying && r.state != StateSolving {
		return "", ErrWrongState
	}
	var values [4]float64
	for i, c := range r.center {
		values[i] = float64(c.Value)
	}
	return engine.Hint(values, r.rng), nil
}

// Claim gives the caller the exclusive right to submit this round.
// First claim wins the race; later claims are rejected, not queued.
func (r *Room) Claim(playerID string) error {
	return r.run(func(*[]func()) error {
		switch r.state {
		case StateSolving:
			return ErrAlreadyClaimed
		case StatePlaying:
		case StateGameOver:
			return ErrGameOver
		default:
			return ErrWrongState
		}
		if r.playerLocked(playerID) == nil {
			return ErrNotInRoom
		}
		r.claimantID = playerID
		r.state = StateSolving
		r.stats.FirstSolves[playerID]++
		r.logger.Debug("solution claimed", "player", playerID, "round", r.round)
		return nil
	})
}

// Submit resolves the claimant's answer. A correct chain wins the round; an
// incorrect one loses it. Either way the round ends here.
func (r *Room) Submit(playerID string, sol Solution) error {
	return r.run(func(after *[]func()) error {
		if r.state == StateGameOver {
			return ErrGameOver
		}
		if r.state != StateSolving {
			return ErrWrongState
		}
		if playerID != r.claimantID {
			return ErrNotClaimant
		}

		elapsed := time.Since(r.roundStart)
		correct := r.rules.ValidateSolution(sol, r.center)
		if correct {
			r.stats.Correct[playerID]++
			r.scores[playerID] += r.rules.CalculateScore(sol, r.center, elapsed)
			if r.stats.FastestMs == 0 || elapsed.Milliseconds() < r.stats.FastestMs {
				r.stats.FastestMs = elapsed.Milliseconds()
			}
			r.recordSolveLocked(playerID, sol, elapsed)
		} else {
			r.stats.Incorrect[playerID]++
		}

		winnerID, loserID := playerID, r.opponentID(playerID)
		if !correct {
			winnerID, loserID = loserID, winnerID
		}
		r.logger.Debug("solution submitted",
			"player", playerID, "round", r.round, "correct", correct, "elapsed", elapsed)
		r.endRoundLocked(winnerID, loserID, correct, &sol, elapsed, after)
		return nil
	})
}

// recordSolveLocked hands the solve to the recorder on a separate goroutine;
// the match result never depends on persistence succeeding.
func (r *Room) recordSolveLocked(playerID string, sol Solution, elapsed time.Duration) {
	if r.solves == nil {
		return
	}
	p := r.playerLocked(playerID)
	values := make([]int, 0, len(r.center))
	for _, c := range r.center {
		values = append(values, c.Value)
	}
	name := ""
	if p != nil {
		name = p.Name
	}
	go r.solves.RecordSolve(values, name, elapsed.Milliseconds(), renderSolution(sol))
}

// endRoundLocked applies the tug-of-war point move, relocates the round's
// cards, and either finishes the match or lines up what comes next.
func (r *Room) endRoundLocked(winnerID, loserID string, correct bool, sol *Solution, elapsed time.Duration, after *[]func()) {
	r.state = StateRoundEnd

	winner := r.playerLocked(winnerID)
	loser := r.playerLocked(loserID)

	// One point of tug-of-war state moves per round: the loser gives one up
	// if they have any, otherwise the winner gains one. Never both.
	switch {
	case loser != nil && loser.Points > 0:
		loser.Points--
	case winner != nil:
		winner.Points++
	}

	// Round cards go to the loser in transfer modes, back to their current
	// owners otherwise. Conservation: cards relocate, never vanish.
	if r.rules.TransfersCards() && loser != nil {
		seat := r.seatOf(loserID)
		for i := range r.center {
			r.center[i].Owner = seat
		}
	}
	r.returnToOwnersLocked(r.center)
	r.center = nil

	outcome := RoundOutcome{
		Round:     r.round,
		WinnerID:  winnerID,
		LoserID:   loserID,
		Correct:   correct,
		SolveTime: elapsed,
		Solution:  sol,
	}
	*after = append(*after, func() {
		if r.hooks.OnRoundEnded != nil {
			r.hooks.OnRoundEnded(outcome)
		}
	})

	if win := r.rules.CheckWinCondition(r.players); win != nil {
		r.gameOverLocked(*win, after)
		return
	}

	if !r.Solo && sol != nil && len(sol.Operations) > 0 {
		r.state = StateReplay
		r.skipVotes = make(map[string]bool)
		r.replayTimer = time.AfterFunc(r.timings.ReplayWindow, r.onReplayTimeout)
		return
	}

	delay := r.timings.RoundRestart
	if r.Solo {
		delay = r.timings.SoloRoundRestart
	}
	r.schedulePending(delay, func() {
		r.run(func(after *[]func()) error {
			if r.state != StateRoundEnd {
				return nil
			}
			r.startRoundLocked(after)
			return nil
		})
	})
}

// returnToOwnersLocked appends each card to the bottom of its owner's deck
// and reshuffles the decks that received cards.
func (r *Room) returnToOwnersLocked(cards []Card) {
	touched := make(map[int]bool)
	for _, c := range cards {
		if c.Owner >= 0 && c.Owner < len(r.players) {
			r.players[c.Owner].Deck = append(r.players[c.Owner].Deck, c)
			touched[c.Owner] = true
		}
	}
	for seat := range touched {
		shuffleDeck(r.players[seat].Deck, r.rng)
	}
}

func (r *Room) onReplayTimeout() {
	r.run(func(after *[]func()) error {
		if r.state != StateReplay {
			return nil
		}
		r.endReplayLocked(after)
		return nil
	})
}

// SkipReplay registers a skip vote; when every seated player has voted the
// replay ends immediately and the next round starts.
func (r *Room) SkipReplay(playerID string) error {
	return r.run(func(after *[]func()) error {
		if r.state != StateReplay {
			return ErrWrongState
		}
		if r.playerLocked(playerID) == nil {
			return ErrNotInRoom
		}
		r.skipVotes[playerID] = true
		if len(r.skipVotes) >= len(r.players) {
			r.endReplayLocked(after)
		}
		return nil
	})
}

func (r *Room) endReplayLocked(after *[]func()) {
	if r.replayTimer != nil {
		r.replayTimer.Stop()
		r.replayTimer = nil
	}
	r.state = StateRoundEnd
	*after = append(*after, func() {
		if r.hooks.OnReplayEnded != nil {
			r.hooks.OnReplayEnded()
		}
	})
	r.startRoundLocked(after)
}

// HandleDisconnect clears the player's connection. During WAITING the seat
// is removed outright and the returned flag is true; during an active game
// the seat stays and a forfeit countdown starts. A repeated disconnect
// restarts the countdown rather than stacking a second timer.
func (r *Room) HandleDisconnect(playerID string) (removed bool) {
	r.run(func(*[]func()) error {
		p := r.playerLocked(playerID)
		if p == nil {
			return nil
		}
		if r.state == StateWaiting {
			r.removeSeatLocked(playerID)
			removed = true
			return nil
		}
		p.ConnID = ""
		if r.state == StateGameOver {
			return nil
		}
		if t, ok := r.forfeitTimers[playerID]; ok {
			t.Stop()
		}
		r.logger.Info("player disconnected mid-game", "player", playerID,
			"window", r.timings.ForfeitWindow)
		r.forfeitTimers[playerID] = time.AfterFunc(r.timings.ForfeitWindow, func() {
			r.onForfeitTimeout(playerID)
		})
		return nil
	})
	return removed
}

func (r *Room) onForfeitTimeout(playerID string) {
	r.run(func(after *[]func()) error {
		if r.state == StateGameOver {
			return nil
		}
		p := r.playerLocked(playerID)
		if p == nil || p.Connected() {
			return nil
		}
		winnerID := r.opponentID(playerID)
		r.logger.Info("forfeit window elapsed", "player", playerID, "winner", winnerID)
		r.gameOverLocked(WinResult{WinnerID: winnerID, Reason: ReasonForfeit}, after)
		return nil
	})
}

// HandleReconnect rebinds the player's connection and cancels any pending
// forfeit. After GAME_OVER it still rebinds so the player observes the
// final state, but nothing is revived.
func (r *Room) HandleReconnect(playerID, connID string) error {
	return r.run(func(*[]func()) error {
		p := r.playerLocked(playerID)
		if p == nil {
			return ErrNotInRoom
		}
		p.ConnID = connID
		if t, ok := r.forfeitTimers[playerID]; ok {
			t.Stop()
			delete(r.forfeitTimers, playerID)
		}
		r.logger.Info("player reconnected", "player", playerID)
		return nil
	})
}

func (r *Room) gameOverLocked(win WinResult, after *[]func()) {
	r.state = StateGameOver
	r.result = &win
	r.cancelTimersLocked()
	r.logger.Info("match over", "winner", win.WinnerID, "reason", win.Reason)
	*after = append(*after, func() {
		if r.hooks.OnGameOver != nil {
			r.hooks.OnGameOver(win)
		}
	})
}

func (r *Room) cancelTimersLocked() {
	for id, t := range r.forfeitTimers {
		t.Stop()
		delete(r.forfeitTimers, id)
	}
	if r.replayTimer != nil {
		r.replayTimer.Stop()
		r.replayTimer = nil
	}
	if r.pendingTimer != nil {
		r.pendingTimer.Stop()
		r.pendingTimer = nil
	}
}

// schedulePending replaces the single outstanding round/redeal timer.
func (r *Room) schedulePending(d time.Duration, fn func()) {
	if r.pendingTimer != nil {
		r.pendingTimer.Stop()
	}
	r.pendingTimer = time.AfterFunc(d, fn)
}

// Stop tears the room down: every timer is canceled so nothing fires
// against a deleted match.
func (r *Room) Stop() {
	r.run(func(*[]func()) error {
		if r.state != StateGameOver {
			r.state = StateGameOver
		}
		r.cancelTimersLocked()
		return nil
	})
}

func (r *Room) playerLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) seatOf(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) opponentID(id string) string {
	for _, p := range r.players {
		if p.ID != id {
			return p.ID
		}
	}
	return ""
}

func (r *Room) removeSeatLocked(playerID string) {
	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}
