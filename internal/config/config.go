// Package config provides a layered (defaults + env) configuration manager
// for the workflow service, built on koanf the way the teacher's pkg/config
// builds its own layered manager.
package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ServerConfig configures the gin HTTP surface (C9).
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the Postgres pool backing C4/C2.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// RedisConfig configures the recurring scheduler store (C7).
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// EngineConfig configures the Workflow Engine (C5).
type EngineConfig struct {
	MaxSteps       int           `koanf:"max_steps"`
	ScriptsRoot    string        `koanf:"scripts_root"`
	ExecTimeout    time.Duration `koanf:"exec_timeout"`
	GatewayCacheSz int           `koanf:"gateway_cache_size"`
}

// StreamConfig holds Execution Stream (C8) cadence settings. The stream
// does not read them; it uses the constants in internal/stream/runner.go.
type StreamConfig struct {
	FastPoll      time.Duration `koanf:"fast_poll"`
	MidPoll       time.Duration `koanf:"mid_poll"`
	SlowPoll      time.Duration `koanf:"slow_poll"`
	Heartbeat     time.Duration `koanf:"heartbeat"`
	MaxConnection time.Duration `koanf:"max_connection"`
}

// SchedulerConfig configures the Task Scheduler's background Runner (C7).
type SchedulerConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
}

// RuntimeConfig carries ambient runtime settings.
type RuntimeConfig struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
}

// AuthConfig configures the HTTP Surface's bearer-token validation (C9).
// Role/authorization checks stay external per spec.md §1 Non-goals; this
// only covers signature and expiry verification.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// Config is the process-wide configuration tree.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Engine    EngineConfig    `koanf:"engine"`
	Stream    StreamConfig    `koanf:"stream"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Auth      AuthConfig      `koanf:"auth"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Timeout: 30 * time.Second},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", User: "postgres", DBName: "workflows", SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379", DB: 0},
		Engine: EngineConfig{
			MaxSteps:       10000,
			ScriptsRoot:    "./scripts",
			ExecTimeout:    30 * time.Second,
			GatewayCacheSz: 1024,
		},
		Stream: StreamConfig{
			FastPoll: time.Second, MidPoll: 2 * time.Second, SlowPoll: 5 * time.Second,
			Heartbeat: 5 * time.Second, MaxConnection: time.Hour,
		},
		Scheduler: SchedulerConfig{PollInterval: 30 * time.Second},
		Runtime:   RuntimeConfig{Environment: "development", LogLevel: "info"},
		Auth:    AuthConfig{JWTSecret: "change-me"},
	}
}

// Manager loads and serves the process-wide Config, notifying registered
// listeners whenever it is reloaded.
type Manager struct {
	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)
}

// NewManager returns a Manager seeded with defaults.
func NewManager() *Manager {
	return &Manager{current: Default()}
}

// Load merges the default provider with an env-var provider (prefix
// "WORKFLOWS_") and stores the result.
func (m *Manager) Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	envProvider := env.Provider(".", env.Opt{
		Prefix: "WORKFLOWS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "WORKFLOWS_"))
			if idx := strings.Index(key, "_"); idx >= 0 {
				key = key[:idx] + "." + key[idx+1:]
			}
			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	m.mu.Lock()
	m.current = cfg
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return cfg, nil
}

// Get returns the currently active configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a callback invoked after every successful Load.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
