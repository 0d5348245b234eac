package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeGateway = "gateway"
	ModePaper   = "paper"
)

type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Server   struct {
		Host  string `yaml:"host"`
		Port  int    `yaml:"port"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

type TerminalConfig struct {
	Mode       string `yaml:"mode"` // "gateway" or "paper"
	GatewayURL string `yaml:"gateway_url"`
	StreamURL  string `yaml:"stream_url"`
	Account    int64  `yaml:"account"`
	Password   string `yaml:"password"`
	Server     string `yaml:"server"`
	Path       string `yaml:"path"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	Paper      struct {
		Symbols []PaperSymbol `yaml:"symbols"`
	} `yaml:"paper"`
}

const defaultTimeout = 10 * time.Second

// Timeout is the terminal call timeout; unset or non-positive means 10s.
func (t TerminalConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

type PaperSymbol struct {
	Name         string  `yaml:"name"`
	Description  string  `yaml:"description"`
	Bid          float64 `yaml:"bid"`
	Ask          float64 `yaml:"ask"`
	Digits       int     `yaml:"digits"`
	ContractSize float64 `yaml:"contract_size"`
	VolumeMin    float64 `yaml:"volume_min"`
	VolumeMax    float64 `yaml:"volume_max"`
	VolumeStep   float64 `yaml:"volume_step"`
}

func defaults() *Config {
	var cfg Config
	cfg.Terminal.Mode = ModeGateway
	cfg.Terminal.TimeoutMs = 10000
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Logging.Level = "info"
	cfg.Logging.File = "trading_bot.log"
	return &cfg
}

// Load reads the YAML file at path (a missing file is not an error), then
// overlays values from envFile and the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := defaults()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Terminal.Mode, "TERMINAL_MODE")
	setString(&c.Terminal.GatewayURL, "MT5_GATEWAY_URL")
	setString(&c.Terminal.StreamURL, "MT5_STREAM_URL")
	setString(&c.Terminal.Password, "MT5_PASSWORD")
	setString(&c.Terminal.Server, "MT5_SERVER")
	setString(&c.Terminal.Path, "MT5_PATH")
	setString(&c.Server.Host, "SERVER_HOST")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")

	if v, ok := os.LookupEnv("MT5_ACCOUNT"); ok && v != "" {
		account, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MT5_ACCOUNT: %w", err)
		}
		c.Terminal.Account = account
	}
	if v, ok := os.LookupEnv("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Server.Debug = debug
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate returns every fatal configuration problem.
func (c *Config) Validate() []error {
	var errs []error

	switch strings.ToLower(c.Terminal.Mode) {
	case ModeGateway:
		if c.Terminal.GatewayURL == "" {
			errs = append(errs, errors.New("MT5_GATEWAY_URL is required"))
		}
		if c.Terminal.Account <= 0 {
			errs = append(errs, errors.New("MT5_ACCOUNT is required"))
		}
		if c.Terminal.Password == "" {
			errs = append(errs, errors.New("MT5_PASSWORD is required"))
		}
		if c.Terminal.Server == "" {
			errs = append(errs, errors.New("MT5_SERVER is required"))
		}
	case ModePaper:
		if len(c.Terminal.Paper.Symbols) == 0 {
			errs = append(errs, errors.New("paper mode needs at least one symbol"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown terminal mode %q", c.Terminal.Mode))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	return errs
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
