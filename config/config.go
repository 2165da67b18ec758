// Package config loads runtime settings: connection secrets from the
// environment (.env in development) and gameplay tuning from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string
	DBUrl        string
	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string
	KafkaTopic   string

	Game GameConfig
}

// Duration decodes YAML scalars like "30s" or "2.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// GameConfig is the tunable part of the match and matchmaking machinery.
// Every field has a default so the file is optional.
type GameConfig struct {
	ForfeitWindow    Duration `yaml:"forfeit_window"`
	ReplayWindow     Duration `yaml:"replay_window"`
	RoundRestart     Duration `yaml:"round_restart"`
	SoloRoundRestart Duration `yaml:"solo_round_restart"`
	RedealRetry      Duration `yaml:"redeal_retry"`
	GraceWindow      Duration `yaml:"grace_window"`

	QueuePassInterval Duration `yaml:"queue_pass_interval"`
	RegionBonus       int      `yaml:"region_bonus"`
	RankedCooldown    Duration `yaml:"ranked_cooldown"`
	CasualCooldown    Duration `yaml:"casual_cooldown"`
}

// Load reads the environment (optionally seeded from .env) and, when
// gameFile names an existing file, the gameplay overrides.
func Load(gameFile string, logger *slog.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using process environment")
	}

	cfg := Config{
		Port:       envOr("PORT", "8080"),
		DBUrl:      os.Getenv("DB_URL"),
		RedisAddr:  envOr("REDIS_ADDR", "localhost:6379"),
		RedisPass:  os.Getenv("REDIS_PASSWORD"),
		KafkaTopic: envOr("KAFKA_TOPIC", "arena-events"),
		Game:       defaultGameConfig(),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if gameFile != "" {
		data, err := os.ReadFile(gameFile)
		switch {
		case os.IsNotExist(err):
			logger.Info("no game config file, using defaults", "path", gameFile)
		case err != nil:
			return Config{}, fmt.Errorf("read game config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg.Game); err != nil {
				return Config{}, fmt.Errorf("parse game config: %w", err)
			}
			applyDefaults(&cfg.Game)
		}
	}
	return cfg, nil
}

func defaultGameConfig() GameConfig {
	return GameConfig{
		ForfeitWindow:     Duration(30 * time.Second),
		ReplayWindow:      Duration(15 * time.Second),
		RoundRestart:      Duration(3 * time.Second),
		SoloRoundRestart:  Duration(2500 * time.Millisecond),
		RedealRetry:       Duration(1500 * time.Millisecond),
		GraceWindow:       Duration(35 * time.Second),
		QueuePassInterval: Duration(2 * time.Second),
		RegionBonus:       50,
		RankedCooldown:    Duration(30 * time.Minute),
		CasualCooldown:    Duration(5 * time.Minute),
	}
}

// applyDefaults fills any field the YAML left at zero.
func applyDefaults(g *GameConfig) {
	defaults := defaultGameConfig()
	if g.ForfeitWindow == 0 {
		g.ForfeitWindow = defaults.ForfeitWindow
	}
	if g.ReplayWindow == 0 {
		g.ReplayWindow = defaults.ReplayWindow
	}
	if g.RoundRestart == 0 {
		g.RoundRestart = defaults.RoundRestart
	}
	if g.SoloRoundRestart == 0 {
		g.SoloRoundRestart = defaults.SoloRoundRestart
	}
	if g.RedealRetry == 0 {
		g.RedealRetry = defaults.RedealRetry
	}
	if g.GraceWindow == 0 {
		g.GraceWindow = defaults.GraceWindow
	}
	if g.QueuePassInterval == 0 {
		g.QueuePassInterval = defaults.QueuePassInterval
	}
	if g.RegionBonus == 0 {
		g.RegionBonus = defaults.RegionBonus
	}
	if g.RankedCooldown == 0 {
		g.RankedCooldown = defaults.RankedCooldown
	}
	if g.CasualCooldown == 0 {
		g.CasualCooldown = defaults.CasualCooldown
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
