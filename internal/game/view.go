package game

import (
	"fmt"
	"strings"
)

// PlayerView is one seat as seen from outside. DeckValues is only present
// for the viewer's own seat; opponents expose deck length alone.
type PlayerView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DeckSize   int     `json:"deck_size"`
	DeckValues []int   `json:"deck_values,omitempty"`
	Ready      bool    `json:"ready"`
	Points     int     `json:"points"`
	Connected  bool    `json:"connected"`
	Score      float64 `json:"score"`
}

// RoomView is a read-only projection of a room. The live room is never
// handed out.
type RoomView struct {
	ID       string       `json:"id"`
	Mode     Mode         `json:"mode"`
	State    State        `json:"state"`
	Round    int          `json:"round"`
	Center   []Card       `json:"center_cards"`
	Players  []PlayerView `json:"players"`
	Claimant string       `json:"claimant,omitempty"`
	Solo     bool         `json:"solo"`
	Ranked   bool         `json:"ranked"`
	Stats    Stats        `json:"stats"`
	Result   *WinResult   `json:"result,omitempty"`
}

// Snapshot renders the room for one player, masking the opponent's undrawn
// deck values.
func (r *Room) Snapshot(viewerID string) RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(viewerID, false)
}

// SpectatorSnapshot renders the full, unmasked room state.
func (r *Room) SpectatorSnapshot() RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked("", true)
}

func (r *Room) viewLocked(viewerID string, unmasked bool) RoomView {
	view := RoomView{
		ID:       r.ID,
		Mode:     r.Mode,
		State:    r.state,
		Round:    r.round,
		Center:   append([]Card(nil), r.center...),
		Claimant: r.claimantID,
		Solo:     r.Solo,
		Ranked:   r.Ranked,
		Stats:    r.stats,
		Result:   r.result,
	}
	for _, p := range r.players {
		pv := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			DeckSize:  len(p.Deck),
			Ready:     p.Ready,
			Points:    p.Points,
			Connected: p.Connected(),
			Score:     r.scores[p.ID],
		}
		if unmasked || p.ID == viewerID {
			for _, c := range p.Deck {
				pv.DeckValues = append(pv.DeckValues, c.Value)
			}
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// State returns the current lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the final result, nil while the match is live.
func (r *Room) Result() *WinResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// StatsSnapshot returns a copy of the match counters.
func (r *Room) StatsSnapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Scores returns a copy of the per-player score map.
func (r *Room) Scores() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

// Players returns the seated player ids in seat order.
func (r *Room) Players() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// PlayerName returns the seated player's display name.
func (r *Room) PlayerName(playerID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.playerLocked(playerID); p != nil {
		return p.Name
	}
	return ""
}

// FindDisconnectedSeat returns the id of a seated, disconnected player with
// the given name, for rejoin-as-reconnect detection.
func (r *Room) FindDisconnectedSeat(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if !p.Connected() && p.Name == name {
			return p.ID, true
		}
	}
	return "", false
}

// SeatCount returns the number of occupied seats.
func (r *Room) SeatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Active reports whether a game is in progress (anything past WAITING and
// before GAME_OVER).
func (r *Room) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != StateWaiting && r.state != StateGameOver
}

// renderSolution formats an operation chain for persistence and hints,
// e.g. "1 ÷ 5 = 0.2; 5 - 0.2 = 4.8; 5 × 4.8 = 24".
func renderSolution(sol Solution) string {
	parts := make([]string, 0, len(sol.Operations))
	for _, op := range sol.Operations {
		parts = append(parts, fmt.Sprintf("%s %s %s = %s",
			trimFloat(op.Left), op.Operator, trimFloat(op.Right), trimFloat(op.Result)))
	}
	return strings.Join(parts, "; ")
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
