package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mpdctl/internal/protocol/session"
	"github.com/danmuck/mpdctl/internal/transport"
)

var (
	ErrAddressRequired = errors.New("config: address required")
	ErrInvalidOutput   = errors.New("config: invalid output format")
	ErrInvalidTimeout  = errors.New("config: negative timeout")
)

// Output formats accepted by the CLI.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// HTTPConfig configures mpdwatch. A non-empty Token guards the routes that
// change daemon state.
type HTTPConfig struct {
	Listen      string
	CorsOrigins []string
	Token       string
}

// Config is the shared configuration of the command-line tools.
type Config struct {
	Address            string
	Password           string
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	CommandTimeout     time.Duration
	Backoff            session.BackoffConfig
	MaxConnectAttempts int
	TLS                transport.TLSConfig
	HTTP               HTTPConfig
	Output             string
}

func DefaultConfig() Config {
	s := session.DefaultConfig()
	return Config{
		Address:            "localhost:" + transport.DefaultPort,
		ConnectTimeout:     s.ConnectTimeout,
		HandshakeTimeout:   s.HandshakeTimeout,
		CommandTimeout:     s.CommandTimeout,
		Backoff:            s.Backoff,
		MaxConnectAttempts: 3,
		HTTP: HTTPConfig{
			Listen:      ":9600",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Output: OutputText,
	}
}

// Session returns the engine configuration.
func (c Config) Session() session.Config {
	return session.Config{
		ConnectTimeout:   c.ConnectTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
		CommandTimeout:   c.CommandTimeout,
		Backoff:          c.Backoff,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrAddressRequired
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output)
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout":   c.ConnectTimeout,
		"handshake_timeout": c.HandshakeTimeout,
		"command_timeout":   c.CommandTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidTimeout, name, d)
		}
	}
	return c.TLS.Validate()
}

type fileBackoff struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

type fileHTTP struct {
	Listen      string   `toml:"listen"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type fileConfig struct {
	Address            string              `toml:"address"`
	Password           string              `toml:"password"`
	ConnectTimeout     string              `toml:"connect_timeout"`
	HandshakeTimeout   string              `toml:"handshake_timeout"`
	CommandTimeout     string              `toml:"command_timeout"`
	MaxConnectAttempts int                 `toml:"max_connect_attempts"`
	Output             string              `toml:"output"`
	Backoff            fileBackoff         `toml:"backoff"`
	TLS                transport.TLSConfig `toml:"tls"`
	HTTP               fileHTTP            `toml:"http"`
}

// Load reads path over DefaultConfig, then applies MPD_HOST and MPD_PORT.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = loadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
	}
	cfg = ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func loadFile(path string, cfg Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"command_timeout", raw.CommandTimeout, &cfg.CommandTimeout},
		{"backoff.initial_delay", raw.Backoff.InitialDelay, &cfg.Backoff.InitialDelay},
		{"backoff.max_delay", raw.Backoff.MaxDelay, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(raw.Output))
	}
	if meta.IsDefined("tls") {
		cfg.TLS = raw.TLS
	}
	if meta.IsDefined("http", "listen") {
		cfg.HTTP.Listen = strings.TrimSpace(raw.HTTP.Listen)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = normalizeList(raw.HTTP.CorsOrigins)
	}
	if meta.IsDefined("http", "token") {
		cfg.HTTP.Token = strings.TrimSpace(raw.HTTP.Token)
	}
	return cfg, nil
}

// ApplyEnv applies MPD_HOST ("[password@]host") and MPD_PORT the way
// standard clients read them.
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	host := strings.TrimSpace(getenv("MPD_HOST"))
	port := strings.TrimSpace(getenv("MPD_PORT"))
	if host != "" {
		if i := strings.LastIndex(host, "@"); i > 0 {
			cfg.Password = host[:i]
			host = host[i+1:]
		}
		cfg.Address = host
	}
	if port == "" || strings.HasPrefix(cfg.Address, "/") || strings.Contains(cfg.Address, "://") {
		return cfg
	}
	h := cfg.Address
	if sh, _, err := net.SplitHostPort(cfg.Address); err == nil {
		h = sh
	}
	cfg.Address = net.JoinHostPort(strings.Trim(h, "[]"), port)
	return cfg
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
