package main

import (
	"bgactions/api/server"
	"bgactions/config"
	"bgactions/logger"
	"bgactions/tasks/events"
	"bgactions/tasks/executors"
	"bgactions/tasks/platform"
	"bgactions/tasks/registry"
	"bgactions/tasks/runners"
	"context"
	"fmt"
	"log"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Create logger
	lg := logger.New(cfg.LogLevel, nil)

	lg.Info("Starting bgactions", map[string]any{
		"version":         cfg.Version,
		"port":            cfg.ServerPort,
		"log_level":       cfg.LogLevel,
		"platform":        cfg.Platform,
		"launch_strategy": cfg.LaunchStrategy,
	})

	p, closePlatform, err := newPlatform(cfg, lg)
	if err != nil {
		log.Fatalf("platform: %v", err)
	}
	defer closePlatform()

	strategy, err := runners.ForName(cfg.LaunchStrategy, p)
	if err != nil {
		log.Fatalf("launch strategy: %v", err)
	}

	reg := registry.New(p, strategy, lg, registry.WithStopTimeout(cfg.StopTimeout))
	defer reg.Close()

	reg.OnExpiration(func(ev events.ExpirationEvent) {
		lg.Warn("platform time limit reached", map[string]any{
			"task_id": ev.TaskID,
			"running": reg.RunningTaskIDs(),
		})
	})

	execs := createExecutorRegistry(lg, reg)

	catalog, err := config.LoadCatalog(cfg.TaskCatalog)
	if err != nil {
		log.Fatalf("task catalog: %v", err)
	}
	if err := defineCatalog(context.Background(), reg, execs, catalog, lg); err != nil {
		log.Fatalf("task catalog: %v", err)
	}

	// Create and start server
	srv := server.New(reg, execs, cfg, lg)
	if err := srv.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// newPlatform builds the configured platform and a func releasing it.
func newPlatform(cfg *config.Config, lg *logger.Logger) (platform.Platform, func(), error) {
	switch cfg.Platform {
	case config.PlatformRedis:
		r, err := platform.NewRedis(cfg.RedisURL, cfg.RedisPrefix, lg)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				lg.Error("failed to close redis platform", map[string]any{"error": err.Error()})
			}
		}, nil
	case config.PlatformMemory:
		return platform.NewMemory(lg), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// createExecutorRegistry sets up all task executors
func createExecutorRegistry(lg *logger.Logger, notifier executors.Notifier) *executors.Registry {
	execs := executors.Defaults(lg, notifier)

	lg.Info("Registered task executors", map[string]any{
		"count": len(execs.Names()),
		"types": execs.Names(),
	})

	return execs
}

// defineCatalog defines every catalog task and then starts the autostart
// ones, in file order.
func defineCatalog(ctx context.Context, reg *registry.Registry, execs *executors.Registry, catalog *config.Catalog, lg *logger.Logger) error {
	for _, task := range catalog.Tasks {
		executor, err := execs.Bind(task.Executor, task.ID)
		if err != nil {
			return err
		}
		if err := reg.DefineTask(ctx, task.ID, executor, task.Options); err != nil {
			return err
		}
	}

	for _, task := range catalog.Tasks {
		if !task.Autostart {
			continue
		}
		if err := reg.StartTask(ctx, task.ID, task.Parameters); err != nil {
			return fmt.Errorf("autostart %s: %w", task.ID, err)
		}
	}

	lg.Info("Task catalog loaded", map[string]any{
		"tasks":   reg.DefinedTaskIDs(),
		"running": reg.RunningTaskIDs(),
	})
	return nil
}
