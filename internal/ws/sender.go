package ws

import (
	"encoding/json"
	"log/slog"

	pkgws "github.com/twentyfour/arena-backend/pkg/websocket"
)

// HubSender adapts the connection hub to the event-sending interface the
// session and matchmaking layers expect.
type HubSender struct {
	hub    *pkgws.Hub
	logger *slog.Logger
}

func NewHubSender(hub *pkgws.Hub, logger *slog.Logger) *HubSender {
	return &HubSender{hub: hub, logger: logger}
}

func (s *HubSender) Send(connID, event string, payload any) {
	msg, err := json.Marshal(outEnvelope{Event: event, Data: payload})
	if err != nil {
		s.logger.Error("outbound marshal failed", "event", event, "error", err)
		return
	}
	if !s.hub.SendToClient(connID, msg) {
		s.logger.Debug("outbound message dropped", "conn", connID, "event", event)
	}
}
