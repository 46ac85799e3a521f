package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	PlatformMemory = "memory"
	PlatformRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	ServerPort      int           `json:"server_port"`
	LogLevel        string        `json:"log_level"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	StopTimeout     time.Duration `json:"stop_timeout"` // bound on platform stops issued after an executor settles
	Version         string        `json:"version"`

	Platform       string `json:"platform"`        // memory or redis
	LaunchStrategy string `json:"launch_strategy"` // headless or direct; defaults per platform
	RedisURL       string `json:"redis_url"`
	RedisPrefix    string `json:"redis_prefix"`
	TaskCatalog    string `json:"task_catalog"` // optional HCL file declaring tasks

	AgentTimeLimit time.Duration `json:"agent_time_limit"` // bgactions-agent only; 0 disables expiry
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnvInt("PORT", 8080),
		LogLevel:        getEnvString("LOG_LEVEL", "INFO"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		StopTimeout:     getEnvDuration("STOP_TIMEOUT", 10*time.Second),
		Version:         getEnvString("VERSION", "1.0.0"),
		Platform:        getEnvString("PLATFORM", PlatformMemory),
		LaunchStrategy:  getEnvString("LAUNCH_STRATEGY", ""),
		RedisURL:        getEnvString("REDIS_URL", "redis://localhost:6379"),
		RedisPrefix:     getEnvString("REDIS_PREFIX", "bgactions"),
		TaskCatalog:     getEnvString("TASK_CATALOG", ""),
		AgentTimeLimit:  getEnvDuration("AGENT_TIME_LIMIT", 6*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// validate performs basic validation of the configuration
func (c *Config) validate() error {
	// Validate ServerPort
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d: must be between 1 and 65535", c.ServerPort)
	}

	// Validate and normalize LogLevel
	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true,
	}
	upperLevel := strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if !validLevels[upperLevel] {
		return fmt.Errorf("invalid log level '%s': must be DEBUG, INFO, WARN, ERROR, or FATAL", c.LogLevel)
	}
	c.LogLevel = upperLevel

	// Validate ShutdownTimeout
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout)
	}
	if c.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("invalid shutdown timeout %v: must not exceed 5 minutes", c.ShutdownTimeout)
	}

	// Validate StopTimeout
	if c.StopTimeout <= 0 {
		return fmt.Errorf("invalid stop timeout %v: must be positive", c.StopTimeout)
	}
	if c.StopTimeout > 5*time.Minute {
		return fmt.Errorf("invalid stop timeout %v: must not exceed 5 minutes", c.StopTimeout)
	}

	// Validate Version
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("version cannot be empty")
	}
	c.Version = strings.TrimSpace(c.Version)

	// Validate and normalize Platform
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	switch c.Platform {
	case PlatformMemory:
	case PlatformRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("redis URL cannot be empty when the redis platform is selected")
		}
		if strings.TrimSpace(c.RedisPrefix) == "" {
			return fmt.Errorf("redis prefix cannot be empty when the redis platform is selected")
		}
	default:
		return fmt.Errorf("invalid platform '%s': must be memory or redis", c.Platform)
	}

	// Validate and normalize LaunchStrategy
	c.LaunchStrategy = strings.ToLower(strings.TrimSpace(c.LaunchStrategy))
	if c.LaunchStrategy == "" {
		c.LaunchStrategy = "headless"
		if c.Platform == PlatformRedis {
			c.LaunchStrategy = "direct"
		}
	}
	switch c.LaunchStrategy {
	case "headless":
		if c.Platform == PlatformRedis {
			return fmt.Errorf("launch strategy 'headless' is not supported by the redis platform")
		}
	case "direct":
	default:
		return fmt.Errorf("invalid launch strategy '%s': must be headless or direct", c.LaunchStrategy)
	}

	c.TaskCatalog = strings.TrimSpace(c.TaskCatalog)

	if c.AgentTimeLimit < 0 {
		return fmt.Errorf("invalid agent time limit %v: must not be negative", c.AgentTimeLimit)
	}

	return nil
}
