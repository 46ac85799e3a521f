package main

import (
	"bgactions/config"
	"bgactions/logger"
	"bgactions/tasks/agent"
	"bgactions/tasks/platform"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// bgactions-agent stands in for the OS side of the redis platform: it holds
// foreground slots for started tasks and reports expirations.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	lg := logger.New(cfg.LogLevel, nil)

	bridge, err := platform.NewRedis(cfg.RedisURL, cfg.RedisPrefix, lg)
	if err != nil {
		log.Fatalf("platform: %v", err)
	}
	defer bridge.Close()

	lg.Info("Starting bgactions agent", map[string]any{
		"version":    cfg.Version,
		"commands":   bridge.CommandsKey(),
		"time_limit": cfg.AgentTimeLimit.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.New(bridge, cfg.AgentTimeLimit, lg)
	a.Start(ctx)
	a.Stop()
}
