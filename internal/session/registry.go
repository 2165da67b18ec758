// Package session maps live connections onto match rooms: creating and
// joining rooms, routing player actions, fanning out state snapshots, and
// tearing matches down after they end.
package session

import (
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twentyfour/arena-backend/internal/game"
	"github.com/twentyfour/arena-backend/internal/metrics"
)

var (
	ErrRoomNotFound = errors.New("session: room not found")
	ErrNotInMatch   = errors.New("session: connection is not in a match")
	ErrNameTaken    = errors.New("session: name already seated in room")
)

// Sender delivers one event to one connection. The websocket hub implements
// it; tests substitute a recorder.
type Sender interface {
	Send(connID, event string, payload any)
}

// Outbound event names shared with the websocket layer.
const (
	EvRoomCreated        = "room-created"
	EvRoomJoined         = "room-joined"
	EvRoomUpdated        = "room-updated"
	EvGameStarting       = "game-starting"
	EvRoundStarted       = "round-started"
	EvSolutionClaimed    = "solution-claimed"
	EvCardsRedealing     = "cards-redealing"
	EvRoundEnded         = "round-ended"
	EvGameOver           = "game-over"
	EvPlayerDisconnected = "player-disconnected-active-game"
	EvPlayerReconnected  = "player-reconnected"
)

// PlayerInfo identifies one participant of a finished match.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchResult is the post-game record handed to the result sink. The sink
// runs rating updates and event publishing; the registry does not wait on it.
type MatchResult struct {
	RoomID   string       `json:"room_id"`
	Mode     game.Mode    `json:"mode"`
	Ranked   bool         `json:"ranked"`
	WinnerID string       `json:"winner_id"`
	LoserID  string       `json:"loser_id"`
	Reason   string       `json:"reason"`
	Stats    game.Stats   `json:"stats"`
	Players  []PlayerInfo `json:"players"`
}

// ResultSink consumes completed matches.
type ResultSink func(res MatchResult)

// Participant is a queued player being seated by the matchmaker.
type Participant struct {
	ConnID string
	Name   string
}

type Config struct {
	Timings     game.Timings
	GraceWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timings:     game.DefaultTimings(),
		GraceWindow: 35 * time.Second,
	}
}

type seatRef struct {
	roomID   string
	playerID string
}

// Registry is the set of live rooms plus the connection-to-seat index.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*game.Room
	conns      map[string]seatRef
	spectators map[string]map[string]struct{}
	grace      map[string]*time.Timer

	cfg     Config
	sender  Sender
	solves  game.SolveRecorder
	sink    ResultSink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRegistry(cfg Config, sender Sender, solves game.SolveRecorder, sink ResultSink, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:      make(map[string]*game.Room),
		conns:      make(map[string]seatRef),
		spectators: make(map[string]map[string]struct{}),
		grace:      make(map[string]*time.Timer),
		cfg:        cfg,
		sender:     sender,
		solves:     solves,
		sink:       sink,
		metrics:    m,
		logger:     logger,
	}
}

// CreateMatch opens a new room and seats the creator. The creator still has
// to ready up before anything starts.
func (reg *Registry) CreateMatch(connID, name string, mode game.Mode, solo, ranked bool) (game.RoomView, error) {
	roomID := newRoomID()
	room := reg.newRoom(roomID, mode, solo, ranked)

	playerID := uuid.NewString()
	p := &game.Player{ID: playerID, Name: name, ConnID: connID}
	if err := room.Seat(p); err != nil {
		room.Stop()
		return game.RoomView{}, err
	}

	reg.mu.Lock()
	reg.rooms[roomID] = room
	reg.conns[connID] = seatRef{roomID: roomID, playerID: playerID}
	reg.mu.Unlock()

	reg.logger.Info("room created", "room", roomID, "mode", mode, "solo", solo, "ranked", ranked)
	view := room.Snapshot(playerID)
	reg.sender.Send(connID, EvRoomCreated, view)
	return view, nil
}

// JoinMatch seats a player in an existing room. A name matching a
// disconnected seat of an active game is treated as that player returning,
// not as a new joiner.
func (reg *Registry) JoinMatch(connID, name, roomID string) (game.RoomView, error) {
	room := reg.room(roomID)
	if room == nil {
		return game.RoomView{}, ErrRoomNotFound
	}

	if returningID, ok := room.FindDisconnectedSeat(name); ok {
		return reg.rebind(connID, room, returningID)
	}

	for _, id := range room.Players() {
		if strings.EqualFold(room.PlayerName(id), name) {
			return game.RoomView{}, ErrNameTaken
		}
	}

	playerID := uuid.NewString()
	p := &game.Player{ID: playerID, Name: name, ConnID: connID}
	if err := room.Seat(p); err != nil {
		return game.RoomView{}, err
	}

	reg.mu.Lock()
	reg.conns[connID] = seatRef{roomID: roomID, playerID: playerID}
	reg.mu.Unlock()

	view := room.Snapshot(playerID)
	reg.sender.Send(connID, EvRoomJoined, view)
	reg.broadcast(room, EvRoomUpdated)
	return view, nil
}

// CreateMatchForPair is the matchmaker's entry point: both players are
// seated and marked ready, and the match starts immediately.
func (reg *Registry) CreateMatchForPair(mode game.Mode, ranked bool, a, b Participant) (string, error) {
	roomID := newRoomID()
	room := reg.newRoom(roomID, mode, false, ranked)

	refs := make(map[string]seatRef, 2)
	for _, part := range []Participant{a, b} {
		playerID := uuid.NewString()
		p := &game.Player{ID: playerID, Name: part.Name, ConnID: part.ConnID}
		if err := room.Seat(p); err != nil {
			room.Stop()
			return "", err
		}
		if err := room.SetReady(playerID, true); err != nil {
			room.Stop()
			return "", err
		}
		refs[part.ConnID] = seatRef{roomID: roomID, playerID: playerID}
	}

	reg.mu.Lock()
	reg.rooms[roomID] = room
	for connID, ref := range refs {
		reg.conns[connID] = ref
	}
	reg.mu.Unlock()

	for connID, ref := range refs {
		reg.sender.Send(connID, EvRoomJoined, room.Snapshot(ref.playerID))
	}
	reg.broadcastGameStarting(room)
	if err := room.Start(); err != nil {
		reg.logger.Error("paired match failed to start", "room", roomID, "error", err)
		reg.Remove(roomID)
		return "", err
	}
	reg.metrics.ActiveMatches.Inc()
	return roomID, nil
}

// Ready flips the caller's ready flag. Once every seat is ready the match
// starts on its own.
func (reg *Registry) Ready(connID string, ready bool) error {
	room, playerID, err := reg.resolve(connID)
	if err != nil {
		return err
	}
	if err := room.SetReady(playerID, ready); err != nil {
		return err
	}
	reg.broadcast(room, EvRoomUpdated)

	err = room.Start()
	switch {
	case err == nil:
		reg.metrics.ActiveMatches.Inc()
		reg.broadcastGameStarting(room)
		return nil
	case errors.Is(err, game.ErrPreconditionFailed):
		// Still waiting on the other seat.
		return nil
	case errors.Is(err, game.ErrWrongState):
		return nil
	default:
		return err
	}
}

// Claim routes a solve claim and announces the winner of the claim race.
func (reg *Registry) Claim(connID string) error {
	room, playerID, err := reg.resolve(connID)
	if err != nil {
		return err
	}
	if err := room.Claim(playerID); err != nil {
		return err
	}
	reg.broadcast(room, EvSolutionClaimed)
	return nil
}

// Submit routes the claimant's solution. Round resolution and everything
// after it comes back through the room hooks.
func (reg *Registry) Submit(connID string, sol game.Solution) error {
	room, playerID, err := reg.resolve(connID)
	if err != nil {
		return err
	}
	return room.Submit(playerID, sol)
}

// Hint fetches a practice-room hint for the current hand.
func (reg *Registry) Hint(connID string) (string, error) {
	room, _, err := reg.resolve(connID)
	if err != nil {
		return "", err
	}
	return room.Hint()
}

func (reg *Registry) SkipReplay(connID string) error {
	room, playerID, err := reg.resolve(connID)
	if err != nil {
		return err
	}
	return room.SkipReplay(playerID)
}

// Spectate attaches a connection to a room's read-only feed.
func (reg *Registry) Spectate(connID, roomID string) (game.RoomView, error) {
	room := reg.room(roomID)
	if room == nil {
		return game.RoomView{}, ErrRoomNotFound
	}
	reg.mu.Lock()
	if reg.spectators[roomID] == nil {
		reg.spectators[roomID] = make(map[string]struct{})
	}
	reg.spectators[roomID][connID] = struct{}{}
	reg.mu.Unlock()
	return room.SpectatorSnapshot(), nil
}

// Disconnect handles a dropped connection: spectators are forgotten, seated
// players enter the room's forfeit flow. An empty waiting room is deleted.
func (reg *Registry) Disconnect(connID string) {
	reg.mu.Lock()
	ref, seated := reg.conns[connID]
	delete(reg.conns, connID)
	for _, watchers := range reg.spectators {
		delete(watchers, connID)
	}
	var room *game.Room
	if seated {
		room = reg.rooms[ref.roomID]
	}
	reg.mu.Unlock()

	if room == nil {
		return
	}
	if removed := room.HandleDisconnect(ref.playerID); removed {
		if room.SeatCount() == 0 {
			reg.Remove(ref.roomID)
		} else {
			reg.broadcast(room, EvRoomUpdated)
		}
		return
	}
	if room.State() != game.StateGameOver {
		reg.broadcast(room, EvPlayerDisconnected)
	}
}

// Leave is an explicit exit and goes through the same path as a drop; an
// active game still runs its forfeit window in case the leave was a client
// crash rather than intent.
func (reg *Registry) Leave(connID string) {
	reg.Disconnect(connID)
}

// Reconnect rebinds a returning player found by name in the given room.
func (reg *Registry) Reconnect(connID, name, roomID string) (game.RoomView, error) {
	room := reg.room(roomID)
	if room == nil {
		return game.RoomView{}, ErrRoomNotFound
	}
	playerID, ok := room.FindDisconnectedSeat(name)
	if !ok {
		return game.RoomView{}, ErrNotInMatch
	}
	return reg.rebind(connID, room, playerID)
}

func (reg *Registry) rebind(connID string, room *game.Room, playerID string) (game.RoomView, error) {
	if err := room.HandleReconnect(playerID, connID); err != nil {
		return game.RoomView{}, err
	}
	reg.mu.Lock()
	reg.conns[connID] = seatRef{roomID: room.ID, playerID: playerID}
	reg.mu.Unlock()

	view := room.Snapshot(playerID)
	reg.sender.Send(connID, EvRoomJoined, view)
	reg.broadcast(room, EvPlayerReconnected)
	return view, nil
}

// BroadcastEvent pushes one shared payload to every connection attached to
// a room, players and spectators alike. Used for post-game extras like
// rating changes.
func (reg *Registry) BroadcastEvent(roomID, event string, payload any) {
	reg.mu.Lock()
	var conns []string
	for connID, ref := range reg.conns {
		if ref.roomID == roomID {
			conns = append(conns, connID)
		}
	}
	for connID := range reg.spectators[roomID] {
		conns = append(conns, connID)
	}
	reg.mu.Unlock()

	for _, connID := range conns {
		reg.sender.Send(connID, event, payload)
	}
}

// Remove deletes a room and every index entry pointing at it.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	room := reg.rooms[roomID]
	delete(reg.rooms, roomID)
	delete(reg.spectators, roomID)
	if t := reg.grace[roomID]; t != nil {
		t.Stop()
		delete(reg.grace, roomID)
	}
	for connID, ref := range reg.conns {
		if ref.roomID == roomID {
			delete(reg.conns, connID)
		}
	}
	reg.mu.Unlock()

	if room != nil {
		room.Stop()
	}
}

// Room returns the live room, or nil.
func (reg *Registry) Room(roomID string) *game.Room {
	return reg.room(roomID)
}

// ActiveRooms reports how many rooms the registry currently holds.
func (reg *Registry) ActiveRooms() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func (reg *Registry) room(roomID string) *game.Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[roomID]
}

func (reg *Registry) resolve(connID string) (*game.Room, string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ref, ok := reg.conns[connID]
	if !ok {
		return nil, "", ErrNotInMatch
	}
	room := reg.rooms[ref.roomID]
	if room == nil {
		return nil, "", ErrRoomNotFound
	}
	return room, ref.playerID, nil
}

// newRoom builds a room whose hooks broadcast through the registry. Hooks
// fire outside the room lock, so they may take the registry lock freely.
func (reg *Registry) newRoom(roomID string, mode game.Mode, solo, ranked bool) *game.Room {
	var room *game.Room
	hooks := game.Hooks{
		OnRoundStarted: func(int, []game.Card) {
			reg.broadcast(room, EvRoundStarted)
		},
		OnRedeal: func() {
			reg.metrics.RedealsTotal.Inc()
			reg.broadcast(room, EvCardsRedealing)
		},
		OnRoundEnded: func(outcome game.RoundOutcome) {
			if outcome.Correct {
				reg.metrics.SolveTime.Observe(outcome.SolveTime.Seconds())
			}
			reg.broadcastRoundEnd(room, outcome)
		},
		OnReplayEnded: func() {
			reg.broadcast(room, EvRoomUpdated)
		},
		OnGameOver: func(result game.WinResult) {
			reg.finishMatch(room, result)
		},
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	room = game.NewRoom(roomID, mode, solo, ranked, hooks, reg.cfg.Timings, reg.solves, reg.logger, rng)
	return room
}

// broadcast sends each seated player their masked view and spectators the
// open view under the given event name.
func (reg *Registry) broadcast(room *game.Room, event string) {
	for connID, playerID := range reg.connsOf(room) {
		reg.sender.Send(connID, event, room.Snapshot(playerID))
	}
	if watchers := reg.watchersOf(room.ID); len(watchers) > 0 {
		view := room.SpectatorSnapshot()
		for _, connID := range watchers {
			reg.sender.Send(connID, event, view)
		}
	}
}

type gameStartingPayload struct {
	CountdownSeconds float64       `json:"countdown_seconds"`
	Room             game.RoomView `json:"room"`
}

// broadcastGameStarting carries the pre-round countdown so clients can show
// it before the first round-started arrives.
func (reg *Registry) broadcastGameStarting(room *game.Room) {
	countdown := reg.cfg.Timings.RoundRestart.Seconds()
	if room.Solo {
		countdown = reg.cfg.Timings.SoloRoundRestart.Seconds()
	}
	for connID, playerID := range reg.connsOf(room) {
		reg.sender.Send(connID, EvGameStarting, gameStartingPayload{
			CountdownSeconds: countdown,
			Room:             room.Snapshot(playerID),
		})
	}
	if watchers := reg.watchersOf(room.ID); len(watchers) > 0 {
		payload := gameStartingPayload{CountdownSeconds: countdown, Room: room.SpectatorSnapshot()}
		for _, connID := range watchers {
			reg.sender.Send(connID, EvGameStarting, payload)
		}
	}
}

type roundEndPayload struct {
	Outcome game.RoundOutcome `json:"outcome"`
	Room    game.RoomView     `json:"room"`
}

func (reg *Registry) broadcastRoundEnd(room *game.Room, outcome game.RoundOutcome) {
	for connID, playerID := range reg.connsOf(room) {
		reg.sender.Send(connID, EvRoundEnded, roundEndPayload{
			Outcome: outcome,
			Room:    room.Snapshot(playerID),
		})
	}
	if watchers := reg.watchersOf(room.ID); len(watchers) > 0 {
		payload := roundEndPayload{Outcome: outcome, Room: room.SpectatorSnapshot()}
		for _, connID := range watchers {
			reg.sender.Send(connID, EvRoundEnded, payload)
		}
	}
}

// finishMatch runs the post-game sequence: announce, hand the record to the
// sink, and keep the room around only for a short reconnection grace.
func (reg *Registry) finishMatch(room *game.Room, result game.WinResult) {
	reg.metrics.ActiveMatches.Dec()
	reg.metrics.MatchesTotal.WithLabelValues(string(room.Mode), result.Reason).Inc()

	res := MatchResult{
		RoomID:   room.ID,
		Mode:     room.Mode,
		Ranked:   room.Ranked,
		WinnerID: result.WinnerID,
		Reason:   result.Reason,
		Stats:    room.StatsSnapshot(),
	}
	for _, id := range room.Players() {
		res.Players = append(res.Players, PlayerInfo{ID: id, Name: room.PlayerName(id)})
		if id != result.WinnerID {
			res.LoserID = id
		}
	}

	reg.broadcast(room, EvGameOver)
	if reg.sink != nil {
		go reg.sink(res)
	}

	reg.mu.Lock()
	reg.grace[room.ID] = time.AfterFunc(reg.cfg.GraceWindow, func() {
		reg.Remove(room.ID)
	})
	reg.mu.Unlock()
	reg.logger.Info("match finished", "room", room.ID,
		"winner", result.WinnerID, "reason", result.Reason, "ranked", room.Ranked)
}

func (reg *Registry) connsOf(room *game.Room) map[string]string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]string)
	for connID, ref := range reg.conns {
		if ref.roomID == room.ID {
			out[connID] = ref.playerID
		}
	}
	return out
}

func (reg *Registry) watchersOf(roomID string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	watchers := make([]string, 0, len(reg.spectators[roomID]))
	for connID := range reg.spectators[roomID] {
		watchers = append(watchers, connID)
	}
	return watchers
}

func newRoomID() string {
	return uuid.NewString()[:8]
}
