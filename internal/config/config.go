package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Routing      RoutingConfig      `json:"routing"`
	Workers      []WorkerConfig     `json:"workers,omitempty"`
	Gates        map[string]float64 `json:"gates,omitempty"`
	Coordination CoordinationConfig `json:"coordination"`
	Database     DatabaseConfig     `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// RoutingConfig carries the scoring policy. Weights and keyword lists are
// hand-tuned and deliberately configurable.
type RoutingConfig struct {
	Weights           WeightsConfig     `json:"weights"`
	Overrides         map[string]string `json:"overrides,omitempty"`
	UrgentKeywords    []string          `json:"urgent_keywords,omitempty"`
	HighPriorityTypes []string          `json:"high_priority_types,omitempty"`
	FallbackWorker    string            `json:"fallback_worker,omitempty"`
}

// WeightsConfig uses pointer fields so an explicit zero in the file is
// distinguishable from an absent key; only absent keys get defaults.
type WeightsConfig struct {
	PrimaryCommand   *int `json:"primary_command,omitempty"`
	SecondaryCommand *int `json:"secondary_command,omitempty"`
	Capability       *int `json:"capability,omitempty"`
	CoreActivity     *int `json:"core_activity,omitempty"`
	HandoffChain     *int `json:"handoff_chain,omitempty"`
	ActiveWorker     *int `json:"active_worker,omitempty"`
	PhaseOwner       *int `json:"phase_owner,omitempty"`
}

// WorkerConfig mirrors a registry profile; main maps it across.
type WorkerConfig struct {
	Name              string   `json:"name"`
	PrimaryCommands   []string `json:"primary_commands,omitempty"`
	SecondaryCommands []string `json:"secondary_commands,omitempty"`
	Capabilities      []string `json:"capabilities,omitempty"`
	CoreActivities    []string `json:"core_activities,omitempty"`
	QualityFocus      []string `json:"quality_focus,omitempty"`
	HandoffTargets    []string `json:"handoff_targets,omitempty"`
}

type CoordinationConfig struct {
	PoolSize                 int `json:"pool_size"`
	InvocationTimeoutSeconds int `json:"invocation_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable
// references. Missing scoring weights are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a runnable configuration with the built-in roster.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	w := &c.Routing.Weights
	fillWeight(&w.PrimaryCommand, 100)
	fillWeight(&w.SecondaryCommand, 50)
	fillWeight(&w.Capability, 25)
	fillWeight(&w.CoreActivity, 30)
	fillWeight(&w.HandoffChain, 30)
	fillWeight(&w.ActiveWorker, 15)
	fillWeight(&w.PhaseOwner, 20)
	if c.Coordination.PoolSize == 0 {
		c.Coordination.PoolSize = 10
	}
	if c.Coordination.InvocationTimeoutSeconds == 0 {
		c.Coordination.InvocationTimeoutSeconds = 30
	}
}

func fillWeight(p **int, def int) {
	if *p == nil {
		v := def
		*p = &v
	}
}
