package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	MCP       MCPConfig       `yaml:"mcp"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// TelegramConfig carries the Bot API credentials. WebhookURL is the public
// base URL Telegram delivers updates to; the bot token is appended as the
// path secret.
type TelegramConfig struct {
	Token      string `yaml:"token"`
	WebhookURL string `yaml:"webhook_url"`
}

// TailscaleConfig exposes the server on a tailnet instead of a plain TCP
// listener. Optional; a plain listener is used when Hostname is empty.
type TailscaleConfig struct {
	Hostname string `yaml:"hostname"`
	AuthKey  string `yaml:"auth_key"`
	StateDir string `yaml:"state_dir"`
}

// MCPConfig controls the read-only MCP endpoint. Disabled unless Enabled is
// set; DefaultUser scopes queries when the caller does not bind a user.
type MCPConfig struct {
	Enabled     bool  `yaml:"enabled"`
	DefaultUser int64 `yaml:"default_user"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A .env file in the working directory is loaded first if present,
// so secrets can be kept out of the YAML. Env vars use the prefix GYMBOT_ and
// underscore-separated paths:
//
//	GYMBOT_SERVER_HOST, GYMBOT_SERVER_PORT,
//	GYMBOT_DB_HOST, GYMBOT_DB_PORT, GYMBOT_DB_NAME,
//	GYMBOT_DB_USER, GYMBOT_DB_PASSWORD, GYMBOT_DB_SSLMODE,
//	GYMBOT_TELEGRAM_TOKEN, GYMBOT_TELEGRAM_WEBHOOK_URL,
//	GYMBOT_TS_HOSTNAME, GYMBOT_TS_AUTHKEY, GYMBOT_TS_STATE_DIR,
//	GYMBOT_MCP_ENABLED, GYMBOT_MCP_DEFAULT_USER
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GYMBOT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GYMBOT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GYMBOT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("GYMBOT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("GYMBOT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("GYMBOT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("GYMBOT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("GYMBOT_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("GYMBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("GYMBOT_TELEGRAM_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("GYMBOT_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("GYMBOT_TS_AUTHKEY"); v != "" {
		cfg.Tailscale.AuthKey = v
	}
	if v := os.Getenv("GYMBOT_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("GYMBOT_MCP_ENABLED"); v != "" {
		cfg.MCP.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GYMBOT_MCP_DEFAULT_USER"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MCP.DefaultUser = id
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	return nil
}
