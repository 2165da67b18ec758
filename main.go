package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/twentyfour/arena-backend/config"
	"github.com/twentyfour/arena-backend/internal/events"
	"github.com/twentyfour/arena-backend/internal/game"
	"github.com/twentyfour/arena-backend/internal/leaderboard"
	"github.com/twentyfour/arena-backend/internal/matchmaking"
	"github.com/twentyfour/arena-backend/internal/metrics"
	"github.com/twentyfour/arena-backend/internal/rating"
	"github.com/twentyfour/arena-backend/internal/session"
	"github.com/twentyfour/arena-backend/internal/ws"
	pkgredis "github.com/twentyfour/arena-backend/pkg/redis"
	pkgws "github.com/twentyfour/arena-backend/pkg/websocket"
)

// solveRecorder fans each correct solution out to persistence and the event
// stream.
type solveRecorder struct {
	ratings   *rating.Service
	publisher *events.Publisher
}

func (s *solveRecorder) RecordSolve(values []int, username string, solveTimeMs int64, solution string) {
	s.ratings.RecordSolve(values, username, solveTimeMs, solution)

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	s.publisher.PuzzleSolved(events.PuzzleSolved{
		Username:    username,
		Cards:       strings.Join(parts, ","),
		Solution:    solution,
		SolveTimeMs: solveTimeMs,
		OccurredAt:  time.Now(),
	})
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("game.yaml", logger)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := rating.NewPostgresStore(sqlDB)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	rdb, err := pkgredis.NewClient(cfg.RedisAddr, cfg.RedisPass, 0)
	if err != nil {
		logger.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if err != nil {
		logger.Error("kafka connect failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	ratingSvc := rating.NewService(store, logger)
	boards := leaderboard.NewService(sqlDB)

	hub := pkgws.NewHub()
	sender := ws.NewHubSender(hub, logger)

	sessionCfg := session.Config{
		Timings: game.Timings{
			ForfeitWindow:    cfg.Game.ForfeitWindow.Std(),
			ReplayWindow:     cfg.Game.ReplayWindow.Std(),
			RoundRestart:     cfg.Game.RoundRestart.Std(),
			SoloRoundRestart: cfg.Game.SoloRoundRestart.Std(),
			RedealRetry:      cfg.Game.RedealRetry.Std(),
		},
		GraceWindow: cfg.Game.GraceWindow.Std(),
	}

	var registry *session.Registry
	sink := func(res session.MatchResult) {
		sinkCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		names := make(map[string]string, len(res.Players))
		for _, p := range res.Players {
			names[p.ID] = p.Name
		}
		duration := int64(0)
		if !res.Stats.StartedAt.IsZero() {
			duration = time.Since(res.Stats.StartedAt).Milliseconds()
		}

		if res.Ranked && res.LoserID != "" {
			winChange, loseChange, err := ratingSvc.ApplyMatchOutcome(sinkCtx, rating.MatchOutcome{
				RoomID:     res.RoomID,
				Mode:       string(res.Mode),
				Winner:     names[res.WinnerID],
				Loser:      names[res.LoserID],
				Reason:     res.Reason,
				Rounds:     res.Stats.RoundsPlayed,
				DurationMs: duration,
				Forfeit:    res.Reason == game.ReasonForfeit,
			})
			if err != nil {
				logger.Error("rating update failed", "room", res.RoomID, "error", err)
			} else {
				registry.BroadcastEvent(res.RoomID, ws.EvRatingUpdate, []rating.Change{winChange, loseChange})
			}
		}

		publisher.MatchCompleted(events.MatchCompleted{
			RoomID:     res.RoomID,
			Mode:       string(res.Mode),
			Ranked:     res.Ranked,
			Winner:     names[res.WinnerID],
			Loser:      names[res.LoserID],
			Reason:     res.Reason,
			Rounds:     res.Stats.RoundsPlayed,
			Redeals:    res.Stats.Redeals,
			DurationMs: duration,
			OccurredAt: time.Now(),
		})
	}
	solves := &solveRecorder{ratings: ratingSvc, publisher: publisher}
	registry = session.NewRegistry(sessionCfg, sender, solves, sink, m, logger)

	queueCfg := matchmaking.DefaultConfig()
	queueCfg.PassInterval = cfg.Game.QueuePassInterval.Std()
	queueCfg.RegionBonus = cfg.Game.RegionBonus
	queueCfg.RankedCooldown = cfg.Game.RankedCooldown.Std()
	queueCfg.CasualCooldown = cfg.Game.CasualCooldown.Std()
	queue := matchmaking.NewQueue(queueCfg, rdb, registry, ratingSvc, sender, m, logger)
	go queue.Run(ctx)

	handler := ws.NewHandler(hub, sender, registry, queue, ratingSvc, boards, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/ws", handler.ServeWS)
	router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("goodbye")
}
