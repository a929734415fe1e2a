package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for a benchmark run.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Source     SourceConfig     `yaml:"source"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Trace      TraceConfig      `yaml:"trace"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controls the replay and the agent roster.
type SimulationConfig struct {
	Agents                []string          `yaml:"agents"`
	AgentNames            map[string]string `yaml:"agent_names"`
	InitialBankrollCents  float64           `yaml:"initial_bankroll_cents"`
	MaxPositionFrac       float64           `yaml:"max_position_frac"`
	MinVolume             int64             `yaml:"min_volume"`
	MaxMarkets            int               `yaml:"max_markets"`
	DecisionPoints        int               `yaml:"decision_points"`
	OracleIntervalSeconds float64           `yaml:"oracle_interval_seconds"`
}

// SourceConfig points at the resolved-markets data. MarketsDB takes
// precedence over MarketsFile when both are set.
type SourceConfig struct {
	MarketsFile string `yaml:"markets_file"`
	MarketsDB   string `yaml:"markets_db"`
}

// OracleConfig holds the chat-completions endpoint settings.
type OracleConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // usually set via ORACLE_API_KEY
}

// TraceConfig controls where run traces are written.
type TraceConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Environment
// variables override the matching YAML keys.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if len(cfg.Simulation.Agents) == 0 {
		return nil, fmt.Errorf("config.Load: no agents configured")
	}

	return &cfg, nil
}

// OracleInterval returns the minimum per-agent inter-call interval.
func (c *Config) OracleInterval() time.Duration {
	return time.Duration(c.Simulation.OracleIntervalSeconds * float64(time.Second))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Simulation.InitialBankrollCents <= 0 {
		cfg.Simulation.InitialBankrollCents = 1_000_000 // $10,000
	}
	if cfg.Simulation.MaxPositionFrac <= 0 {
		cfg.Simulation.MaxPositionFrac = 0.10
	}
	if cfg.Simulation.MinVolume <= 0 {
		cfg.Simulation.MinVolume = 1000
	}
	if cfg.Simulation.DecisionPoints <= 0 {
		cfg.Simulation.DecisionPoints = 3
	}
	if cfg.Simulation.OracleIntervalSeconds <= 0 {
		cfg.Simulation.OracleIntervalSeconds = 1
	}
	if cfg.Source.MarketsFile == "" && cfg.Source.MarketsDB == "" {
		cfg.Source.MarketsFile = "resolved_markets_with_history.json"
	}
	if cfg.Oracle.BaseURL == "" {
		cfg.Oracle.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Trace.Dir == "" {
		cfg.Trace.Dir = "traces"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
