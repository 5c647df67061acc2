// Package config loads dispatchd's server configuration. Lookup order and
// the config-file search path follow cklxx-elephant.ai's cobra/viper
// wiring in cmd/cobra_cli.go (SetConfigName/AddConfigPath/ReadInConfig,
// env vars layered on top); the fixed, explicitly-named field set and
// strict rejection of anything unrecognized mean a dispatch server never
// silently ignores a typo'd setting.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dispatchd/internal/apperrors"
)

// PoolsBackend selects the persistence backend for pools/render nodes and
// the dispatch tree itself (the POOLS_BACKEND_TYPE knob).
type PoolsBackend string

const (
	BackendPostgres PoolsBackend = "db"
	BackendFile     PoolsBackend = "file"
	BackendWS       PoolsBackend = "ws"
)

// Config is dispatchd's full runtime configuration.
type Config struct {
	ListenAddr string

	PoolsBackend PoolsBackend
	DatabaseURL  string // required by the db and file backends
	ServerHome   string // file backend only: flat-file pool/render-node store root

	// HeartbeatTimeout is the RN_HEARTBEAT_TIMEOUT knob: how stale a
	// RenderNode's last heartbeat may be before it is treated as
	// unreachable.
	HeartbeatTimeout time.Duration

	AssignTickInterval  time.Duration
	PersistTickInterval time.Duration
	CancelGrace         time.Duration

	// CommandTimeout forces a RUNNING command to ERROR once it has gone
	// this long without a dispatch or worker-callback refresh.
	CommandTimeout time.Duration
	// SweepInterval is how often the staleness sweep (command timeouts,
	// heartbeat misses, cancel-grace expiry) runs.
	SweepInterval time.Duration

	LicenceCapacity map[string]int
}

func defaults() *Config {
	return &Config{
		ListenAddr:          ":8080",
		PoolsBackend:        BackendPostgres,
		HeartbeatTimeout:    60 * time.Second,
		AssignTickInterval:  time.Second,
		PersistTickInterval: 5 * time.Second,
		CancelGrace:         30 * time.Second,
		CommandTimeout:      30 * time.Minute,
		SweepInterval:       10 * time.Second,
		LicenceCapacity:     map[string]int{},
	}
}

// Load reads configuration from one config file, then layers environment
// variables on top (an env var overrides the file). The file is path when
// non-empty (an explicit --config flag value); otherwise it is
// dispatchd.{yaml,json,toml} searched for in the current directory and
// $HOME/.dispatchd, and finding none there is not an error — every field
// has a default. A key in the file that is not one of the known settings
// is rejected.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("dispatchd")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.dispatchd")
	if path != "" {
		v.SetConfigFile(path)
	}

	bindEnv(v)
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	known := map[string]bool{
		"listen_addr": true, "pools_backend_type": true, "database_url": true,
		"server_home": true, "rn_heartbeat_timeout": true, "assign_tick_interval": true,
		"persist_tick_interval": true, "cancel_grace": true, "command_timeout": true,
		"sweep_interval": true, "licence_capacity": true,
	}
	for _, key := range v.AllKeys() {
		if !known[strings.SplitN(key, ".", 2)[0]] {
			return nil, &apperrors.ValidationError{Kind: "config", Msg: fmt.Sprintf("unknown config key %q", key)}
		}
	}

	cfg := defaults()
	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.PoolsBackend = PoolsBackend(v.GetString("pools_backend_type"))
	cfg.DatabaseURL = v.GetString("database_url")
	cfg.ServerHome = v.GetString("server_home")
	cfg.HeartbeatTimeout = v.GetDuration("rn_heartbeat_timeout")
	cfg.AssignTickInterval = v.GetDuration("assign_tick_interval")
	cfg.PersistTickInterval = v.GetDuration("persist_tick_interval")
	cfg.CancelGrace = v.GetDuration("cancel_grace")
	cfg.CommandTimeout = v.GetDuration("command_timeout")
	cfg.SweepInterval = v.GetDuration("sweep_interval")
	if licences := v.GetStringMapString("licence_capacity"); len(licences) > 0 {
		cfg.LicenceCapacity = map[string]int{}
		for name, n := range licences {
			var tokens int
			if _, err := fmt.Sscanf(n, "%d", &tokens); err != nil {
				return nil, fmt.Errorf("config: licence_capacity.%s: %w", name, err)
			}
			cfg.LicenceCapacity[name] = tokens
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("listen_addr", "DISPATCHD_LISTEN_ADDR")
	_ = v.BindEnv("pools_backend_type", "POOLS_BACKEND_TYPE")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("server_home", "SERVER_HOME")
	_ = v.BindEnv("rn_heartbeat_timeout", "RN_HEARTBEAT_TIMEOUT")
	_ = v.BindEnv("assign_tick_interval", "ASSIGN_TICK_INTERVAL")
	_ = v.BindEnv("persist_tick_interval", "PERSIST_TICK_INTERVAL")
	_ = v.BindEnv("cancel_grace", "CANCEL_GRACE")
	_ = v.BindEnv("command_timeout", "COMMAND_TIMEOUT")
	_ = v.BindEnv("sweep_interval", "SWEEP_INTERVAL")
}

func applyDefaults(v *viper.Viper) {
	d := defaults()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("pools_backend_type", string(d.PoolsBackend))
	v.SetDefault("rn_heartbeat_timeout", d.HeartbeatTimeout)
	v.SetDefault("assign_tick_interval", d.AssignTickInterval)
	v.SetDefault("persist_tick_interval", d.PersistTickInterval)
	v.SetDefault("cancel_grace", d.CancelGrace)
	v.SetDefault("command_timeout", d.CommandTimeout)
	v.SetDefault("sweep_interval", d.SweepInterval)
}

// Validate rejects a config that cannot start a server: an unknown
// backend, or a backend missing the connection info it needs.
func (c *Config) Validate() error {
	switch c.PoolsBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return &apperrors.ValidationError{Kind: "config", Msg: "database_url is required for the postgres backend"}
		}
	case BackendFile:
		// The flat-file backend only ever covers worker topology
		// (internal/persistence/filebackend); the dispatch tree itself
		// still needs the relational store for the restart invariant, so
		// both paths are required together.
		if c.ServerHome == "" {
			return &apperrors.ValidationError{Kind: "config", Msg: "server_home is required for the file backend"}
		}
		if c.DatabaseURL == "" {
			return &apperrors.ValidationError{Kind: "config", Msg: "database_url is required even with pools_backend_type=file, for the dispatch tree itself"}
		}
	case BackendWS:
		return apperrors.ErrUnsupportedBackend
	default:
		return &apperrors.ValidationError{Kind: "config", Msg: fmt.Sprintf("unknown pools_backend_type %q", c.PoolsBackend)}
	}
	if c.HeartbeatTimeout <= 0 {
		return &apperrors.ValidationError{Kind: "config", Msg: "rn_heartbeat_timeout must be positive"}
	}
	return nil
}
