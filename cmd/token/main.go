// token mints an operator token pair for the /v1 API.
//
//	go run ./cmd/token -operator ops@example.com -role admin
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"voice-relay/internal/auth"
	"voice-relay/internal/config"
	"voice-relay/internal/rbac"
	"voice-relay/pkg/logger"
)

func main() {
	operator := flag.String("operator", "", "Operator id placed in the token")
	role := flag.String("role", rbac.RoleOperator, "Role: viewer, operator or admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, "voice-relay-token")

	if *operator == "" || !rbac.IsKnownRole(*role) {
		log.Error("operator is required and role must be viewer, operator or admin", "role", *role)
		os.Exit(2)
	}

	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	pair, err := m.IssuePair(time.Now(), *operator, *role)
	if err != nil {
		log.Error("token issuance failed", "err", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(pair)
}
