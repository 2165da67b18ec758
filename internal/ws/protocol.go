package ws

import (
	"github.com/twentyfour/arena-backend/internal/game"
)

// Inbound operation names.
const (
	OpCreateMatch    = "create-match"
	OpJoinMatch      = "join-match"
	OpReconnect      = "reconnect"
	OpSpectate       = "spectate"
	OpReady          = "ready"
	OpClaimSolve     = "claim-solve"
	OpSubmitSolution = "submit-solution"
	OpSkipReplay     = "skip-replay"
	OpGetHint        = "get-hint"
	OpLeave          = "leave"
	OpJoinQueue      = "join-queue"
	OpLeaveQueue     = "leave-queue"
	OpGetProfile     = "get-profile"
	OpGetLeaderboard = "get-leaderboard"
	OpGetHistory     = "get-history"
)

// Extra outbound events owned by this layer; the rest come from the session
// and matchmaking packages.
const (
	EvError        = "error"
	EvHint         = "hint"
	EvProfile      = "profile"
	EvLeaderboard  = "leaderboard"
	EvMatchHistory = "match-history"
	EvRatingUpdate = "rating-update"
)

// Envelope is one inbound client frame. Fields beyond Op are op-specific
// and zero elsewhere.
type Envelope struct {
	Op       string         `json:"op"`
	Name     string         `json:"name,omitempty"`
	RoomID   string         `json:"room_id,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Solo     bool           `json:"solo,omitempty"`
	Ranked   bool           `json:"ranked,omitempty"`
	Ready    bool           `json:"ready,omitempty"`
	Region   string         `json:"region,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
	Solution *game.Solution `json:"solution,omitempty"`
}

// outEnvelope is every outbound frame: an event name plus its payload.
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type errorPayload struct {
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}
