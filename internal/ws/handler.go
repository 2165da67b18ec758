// Package ws terminates websocket connections and dispatches client frames
// onto the session registry, matchmaking queue, and rating lookups.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/twentyfour/arena-backend/internal/game"
	"github.com/twentyfour/arena-backend/internal/leaderboard"
	"github.com/twentyfour/arena-backend/internal/matchmaking"
	"github.com/twentyfour/arena-backend/internal/rating"
	"github.com/twentyfour/arena-backend/internal/session"
	pkgws "github.com/twentyfour/arena-backend/pkg/websocket"
)

const queryTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Handler struct {
	hub      *pkgws.Hub
	sender   *HubSender
	registry *session.Registry
	queue    *matchmaking.Queue
	ratings  *rating.Service
	boards   *leaderboard.Service
	logger   *slog.Logger
}

func NewHandler(hub *pkgws.Hub, sender *HubSender, registry *session.Registry, queue *matchmaking.Queue, ratings *rating.Service, boards *leaderboard.Service, logger *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		sender:   sender,
		registry: registry,
		queue:    queue,
		ratings:  ratings,
		boards:   boards,
		logger:   logger,
	}
}

// ServeWS upgrades the connection and runs its pumps. The connection id is
// server-assigned; the player name comes from the query string.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "guest-" + uuid.NewString()[:6]
	}
	connID := uuid.NewString()
	client := pkgws.NewClient(connID, conn)
	h.hub.Add(client)
	h.logger.Info("client connected", "conn", connID, "name", name)

	go client.WritePump()
	client.ReadLoop(func(msg []byte) {
		h.dispatch(connID, name, msg)
	})

	h.hub.Remove(connID)
	h.registry.Disconnect(connID)
	h.queue.Disconnect(connID)
	h.logger.Info("client disconnected", "conn", connID, "name", name)
}

func (h *Handler) dispatch(connID, name string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(connID, "", "malformed message")
		return
	}
	if env.Name != "" {
		name = env.Name
	}

	var err error
	switch env.Op {
	case OpCreateMatch:
		_, err = h.registry.CreateMatch(connID, name, game.ParseMode(env.Mode), env.Solo, env.Ranked)
	case OpJoinMatch:
		_, err = h.registry.JoinMatch(connID, name, env.RoomID)
	case OpReconnect:
		_, err = h.registry.Reconnect(connID, name, env.RoomID)
	case OpSpectate:
		var view game.RoomView
		view, err = h.registry.Spectate(connID, env.RoomID)
		if err == nil {
			h.sender.Send(connID, session.EvRoomUpdated, view)
		}
	case OpReady:
		err = h.registry.Ready(connID, env.Ready)
	case OpClaimSolve:
		err = h.registry.Claim(connID)
	case OpSubmitSolution:
		if env.Solution == nil {
			h.sendError(connID, env.Op, "missing solution")
			return
		}
		err = h.registry.Submit(connID, *env.Solution)
	case OpSkipReplay:
		err = h.registry.SkipReplay(connID)
	case OpGetHint:
		var hint string
		hint, err = h.registry.Hint(connID)
		if err == nil {
			h.sender.Send(connID, EvHint, map[string]string{"hint": hint})
		}
	case OpLeave:
		h.registry.Leave(connID)
	case OpJoinQueue:
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		err = h.queue.Join(ctx, matchmaking.Entry{
			ConnID: connID,
			Name:   name,
			Mode:   game.ParseMode(env.Mode),
			Region: env.Region,
		}, env.Ranked)
		cancel()
	case OpLeaveQueue:
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		h.queue.Leave(ctx, connID)
		cancel()
	case OpGetProfile:
		h.handleProfile(connID, name)
	case OpGetLeaderboard:
		h.handleLeaderboard(connID, env.Limit, env.Offset)
	case OpGetHistory:
		h.handleHistory(connID, name, env.Limit)
	default:
		h.sendError(connID, env.Op, "unknown operation")
		return
	}

	if err != nil {
		h.logger.Debug("operation rejected", "conn", connID, "op", env.Op, "error", err)
		h.sendError(connID, env.Op, err.Error())
	}
}

func (h *Handler) handleProfile(connID, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	prof, err := h.ratings.Profile(ctx, name)
	if err != nil {
		h.sendError(connID, OpGetProfile, "profile unavailable")
		return
	}
	h.sender.Send(connID, EvProfile, prof)
}

func (h *Handler) handleLeaderboard(connID string, limit, offset int) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	entries, err := h.boards.Top(ctx, limit, offset)
	if err != nil {
		h.sendError(connID, OpGetLeaderboard, "leaderboard unavailable")
		return
	}
	h.sender.Send(connID, EvLeaderboard, entries)
}

func (h *Handler) handleHistory(connID, name string, limit int) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	matches, err := h.boards.History(ctx, name, limit)
	if err != nil {
		h.sendError(connID, OpGetHistory, "history unavailable")
		return
	}
	h.sender.Send(connID, EvMatchHistory, matches)
}

func (h *Handler) sendError(connID, op, message string) {
	h.sender.Send(connID, EvError, errorPayload{Op: op, Message: message})
}
