// kata-bot speaks GTP on stdin/stdout, backed by a KataGo analysis
// subprocess. Configuration comes from the environment; see
// internal/config.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appcfg "github.com/kapu/katago-gtp-bot/internal/config"
	"github.com/kapu/katago-gtp-bot/internal/engine"
	"github.com/kapu/katago-gtp-bot/internal/gtp"
	"github.com/kapu/katago-gtp-bot/internal/katago"
	"github.com/kapu/katago-gtp-bot/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L().With(zap.String("session", uuid.NewString()))
	defer logger.Sync()

	style, err := engine.GetStyle(cfg.Style, cfg.StyleFile)
	if err != nil {
		logger.Fatal("style error", zap.Error(err))
	}
	if style.HumanProfile != "" && cfg.KataGoHumanModel == "" {
		logger.Fatal("style needs a human model",
			zap.String("style", style.Name),
			zap.String("missing", "KATAGO_HUMAN_MODEL"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := katago.Launch(ctx, katago.Config{
		BinaryPath:     cfg.KataGoPath,
		ConfigPath:     cfg.KataGoConfig,
		ModelPath:      cfg.KataGoModel,
		HumanModelPath: cfg.KataGoHumanModel,
		ExtraArgs:      cfg.KataGoExtraArgs,
	}, logger)
	if err != nil {
		logger.Fatal("katago launch failed", zap.Error(err))
	}
	defer client.Close()

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel := engine.NewSelector(style, seed, logger)

	sess := gtp.NewSession(client, sel, gtp.Config{
		In:        os.Stdin,
		Out:       os.Stdout,
		MaxVisits: cfg.MaxVisits,
		Log:       logger,
	})
	logger.Info("session start", zap.String("style", style.Name), zap.Int("max_visits", cfg.MaxVisits))
	if err := sess.Run(ctx); err != nil {
		logger.Fatal("session failed", zap.Error(err))
	}
}
