// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"log/slog"
	"os"

	"voice-relay/internal/config"
	"voice-relay/internal/db/migrate"
	"voice-relay/pkg/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, "voice-relay-migrate")

	if err := migrate.Run(cfg.PostgresURL(), *direction); err != nil {
		log.Error("migration failed", "direction", *direction, "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "direction", *direction)
}
