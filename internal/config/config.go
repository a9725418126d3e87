package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// AppConfig is the process configuration, read from the environment
// once at startup.
type AppConfig struct {
	KataGoPath       string
	KataGoConfig     string
	KataGoModel      string
	KataGoHumanModel string
	KataGoExtraArgs  []string

	Style     string
	StyleFile string
	MaxVisits int

	// RandomSeed pins the human-style sampling; 0 means seed from the
	// clock.
	RandomSeed int64
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Style:     "balanced",
		MaxVisits: 100,
	}

	cfg.KataGoPath = strings.TrimSpace(os.Getenv("KATAGO_PATH"))
	cfg.KataGoConfig = strings.TrimSpace(os.Getenv("KATAGO_CONFIG"))
	cfg.KataGoModel = strings.TrimSpace(os.Getenv("KATAGO_MODEL"))
	cfg.KataGoHumanModel = strings.TrimSpace(os.Getenv("KATAGO_HUMAN_MODEL"))

	if v := strings.TrimSpace(os.Getenv("KATAGO_EXTRA_ARGS")); v != "" {
		cfg.KataGoExtraArgs = append(cfg.KataGoExtraArgs, strings.Fields(v)...)
	}

	if v := strings.TrimSpace(os.Getenv("BOT_STYLE")); v != "" {
		cfg.Style = v
	}
	cfg.StyleFile = strings.TrimSpace(os.Getenv("BOT_STYLE_FILE"))

	if v := strings.TrimSpace(os.Getenv("BOT_MAX_VISITS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxVisits = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BOT_RANDOM_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RandomSeed = n
		}
	}

	if cfg.KataGoPath == "" {
		return nil, errors.New("KATAGO_PATH is required")
	}
	if cfg.KataGoConfig == "" {
		return nil, errors.New("KATAGO_CONFIG is required")
	}
	if cfg.KataGoModel == "" {
		return nil, errors.New("KATAGO_MODEL is required")
	}

	return cfg, nil
}
