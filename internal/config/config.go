// Package config loads the engine's YAML configuration, adapted from
// witnz's config.Load: viper-backed, env-var expansion, mapstructure
// tags, a Validate() pass applying defaults and rejecting bad values.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Materialize MaterializeConfig `mapstructure:"materialize"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

// SourceConfig configures the live-reload verification path (pgx
// stand-in for the out-of-scope Oracle connection).
type SourceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// EngineConfig configures C3/C4/C5 and the durable-state location.
type EngineConfig struct {
	DataDir             string `mapstructure:"data_dir"`
	Database            string `mapstructure:"database"`
	CheckpointIntervalS int    `mapstructure:"checkpoint_interval_s"`
	PollIntervalUs      int    `mapstructure:"poll_interval_us"`
	MaxQueueSize        int    `mapstructure:"max_queue_size"`
	TraceMask           int    `mapstructure:"trace_mask"`
}

// MaterializeConfig configures C2's buildMaps filters.
type MaterializeConfig struct {
	OwnerRegex          string `mapstructure:"owner_regex"`
	TableRegex          string `mapstructure:"table_regex"`
	DefaultCharmap      int64  `mapstructure:"default_charmap"`
	DefaultNcharCharmap int64  `mapstructure:"default_nchar_charmap"`
	AdaptiveSchema      bool   `mapstructure:"adaptive_schema"`
	DisableChecks       bool   `mapstructure:"disable_checks"`
}

type AlertsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SlackWebhook string `mapstructure:"slack_webhook"`
	AutoShutdown bool   `mapstructure:"auto_shutdown"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if expanded := os.ExpandEnv(val); expanded != val {
			v.Set(key, expanded)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.Database == "" {
		return fmt.Errorf("engine.database is required")
	}
	if c.Engine.DataDir == "" {
		return fmt.Errorf("engine.data_dir is required")
	}

	if c.Engine.CheckpointIntervalS == 0 {
		c.Engine.CheckpointIntervalS = 300
	}
	if c.Engine.PollIntervalUs == 0 {
		c.Engine.PollIntervalUs = 100000
	}
	if c.Engine.MaxQueueSize == 0 {
		c.Engine.MaxQueueSize = 65536
	}
	if c.Materialize.DefaultCharmap == 0 {
		c.Materialize.DefaultCharmap = 873
	}
	if c.Materialize.DefaultNcharCharmap == 0 {
		c.Materialize.DefaultNcharCharmap = 2000
	}
	if c.Materialize.OwnerRegex == "" {
		c.Materialize.OwnerRegex = ".*"
	}
	if c.Materialize.TableRegex == "" {
		c.Materialize.TableRegex = ".*"
	}

	return nil
}

func (s *SourceConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		s.Host, s.Port, s.Database, s.User, s.Password)
}
