// Package events publishes match and puzzle activity to Kafka for downstream
// consumers. Publishing is best-effort: a broker outage costs events, never
// gameplay.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const (
	TypeMatchCompleted = "match.completed"
	TypePuzzleSolved   = "puzzle.solved"
)

// MatchCompleted is emitted once per finished match.
type MatchCompleted struct {
	RoomID     string    `json:"room_id"`
	Mode       string    `json:"mode"`
	Ranked     bool      `json:"ranked"`
	Winner     string    `json:"winner"`
	Loser      string    `json:"loser"`
	Reason     string    `json:"reason"`
	Rounds     int       `json:"rounds"`
	Redeals    int       `json:"redeals"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PuzzleSolved is emitted for every correct solution.
type PuzzleSolved struct {
	Username    string    `json:"username"`
	Cards       string    `json:"cards"`
	Solution    string    `json:"solution"`
	SolveTimeMs int64     `json:"solve_time_ms"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher wraps a sarama sync producer. A Publisher with no brokers
// configured is valid and drops everything silently.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		logger.Info("event publishing disabled, no kafka brokers configured")
		return &Publisher{logger: logger}, nil
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka %v: %w", brokers, err)
	}
	logger.Info("event publishing enabled", "brokers", brokers, "topic", topic)
	return &Publisher{producer: producer, topic: topic, logger: logger}, nil
}

func (p *Publisher) MatchCompleted(ev MatchCompleted) {
	p.publish(ev.RoomID, envelope{Type: TypeMatchCompleted, Payload: ev})
}

func (p *Publisher) PuzzleSolved(ev PuzzleSolved) {
	p.publish(ev.Username, envelope{Type: TypePuzzleSolved, Payload: ev})
}

func (p *Publisher) publish(key string, env envelope) {
	if p.producer == nil {
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("event marshal failed", "type", env.Type, "error", err)
		return
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		p.logger.Warn("event dropped", "type", env.Type, "error", err)
	}
}

func (p *Publisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
