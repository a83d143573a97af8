package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	"github.com/nimasrn/messaging-gateway/internal/config"
	gateway "github.com/nimasrn/messaging-gateway/internal/gateways"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
)

// main.go migrate --dir=./migrations
// main.go sweep --max-age=720h --batch=100
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	switch command() {
	case "sweep":
		runSweep()
	default:
		runMigrations()
	}
}

func command() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "migrate"
}

func runMigrations() {
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err := pg.Migrate(pgConf, getMigrationPath())
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

// runSweep re-probes capability records older than --max-age for every
// configured RCS agent, so revoked devices stop receiving rich traffic.
func runSweep() {
	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, false)
	if err != nil {
		logger.Error("sweep: failed to connect to postgres", "error", err)
		return
	}

	capabilityRepo := repository.NewCapabilityRepository(db)
	brandRepo := repository.NewBrandRepository(db)
	rcsClient := gateway.NewRCSClient(gateway.RCSConfig{BaseURL: config.Get().RCSEndpoint})
	registry := capability.NewRegistry(capabilityRepo, rcsClient)

	ctx := context.Background()
	agents, err := brandRepo.ListRCSAgents(ctx)
	if err != nil {
		logger.Error("sweep: failed to list agents", "error", err)
		return
	}

	maxAge := durationArg("--max-age=", 30*24*time.Hour)
	batch := intArg("--batch=", 100)

	total := 0
	for _, agent := range agents {
		refreshed, err := registry.Sweep(ctx, agent, maxAge, batch)
		if err != nil {
			logger.Error("sweep: probe batch failed", "agent", agent.ID, "error", err)
			continue
		}
		total += refreshed
	}
	logger.Info("sweep finished", "agents", len(agents), "refreshed", total)
}

func durationArg(prefix string, fallback time.Duration) time.Duration {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			if d, err := time.ParseDuration(strings.TrimPrefix(v, prefix)); err == nil {
				return d
			}
		}
	}
	return fallback
}

func intArg(prefix string, fallback int) int {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			n := 0
			for _, c := range strings.TrimPrefix(v, prefix) {
				if c < '0' || c > '9' {
					return fallback
				}
				n = n*10 + int(c-'0')
			}
			if n > 0 {
				return n
			}
		}
	}
	return fallback
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed migrations dir, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the migrations dir, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
