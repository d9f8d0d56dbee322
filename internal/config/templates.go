package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders cfg in the file format Load reads.
func Template(cfg Config) (string, error) {
	raw := fileConfig{
		Address:            cfg.Address,
		Password:           cfg.Password,
		ConnectTimeout:     cfg.ConnectTimeout.String(),
		HandshakeTimeout:   cfg.HandshakeTimeout.String(),
		CommandTimeout:     cfg.CommandTimeout.String(),
		MaxConnectAttempts: cfg.MaxConnectAttempts,
		Output:             cfg.Output,
		Backoff: fileBackoff{
			InitialDelay: cfg.Backoff.InitialDelay.String(),
			Multiplier:   cfg.Backoff.Multiplier,
			MaxDelay:     cfg.Backoff.MaxDelay.String(),
			Jitter:       cfg.Backoff.Jitter,
		},
		TLS: cfg.TLS,
		HTTP: fileHTTP{
			Listen:      cfg.HTTP.Listen,
			CorsOrigins: cfg.HTTP.CorsOrigins,
			Token:       cfg.HTTP.Token,
		},
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(data), nil
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(DefaultConfig())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
