package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"inboxd/internal/app"
	"inboxd/pkg/config"
	"inboxd/pkg/logger"
	"inboxd/pkg/shutdown"
	"inboxd/pkg/state"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		log.Fatalf("failed to load config file: %v", err)
	}
	envCfg, envRes := config.ParseConfigEnvs()
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		log.Fatalf("failed to resolve config: %v", err)
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	// canonical runtime layout under the DB path; fail hard before opening
	// anything else so a bad mount surfaces immediately
	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		shutdown.Abort("state_dirs_unusable", err, eff.DBPath, 0)
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		logger.Warn("audit_sink_unavailable", "error", err)
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup_failed", err, eff.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server_failed", err, eff.DBPath)
	}

	// graceful drain of in-flight HTTP requests
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := a.Shutdown(shCtx); err != nil {
		logger.Warn("http_shutdown_incomplete", "error", err)
	}
	logger.Info("shutdown_complete")
}
