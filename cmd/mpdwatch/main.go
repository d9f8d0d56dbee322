package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/mpdctl/internal/config"
	"github.com/danmuck/mpdctl/internal/httpapi"
	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/danmuck/mpdctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

type options struct {
	configPath string
	address    string
	listen     string
	name       string
}

func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("mpdwatch", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", os.Getenv("MPDCTL_CONFIG"), "config file (TOML)")
	fs.StringVarP(&o.address, "address", "a", "", "daemon address (overrides config)")
	fs.StringVarP(&o.listen, "listen", "l", "", "HTTP listen address (overrides config)")
	fs.StringVar(&o.name, "name", "mpdwatch", "server name reported by /health and metrics")
	err := fs.Parse(args)
	return o, fs, err
}

func loadConfig(o options, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("address") {
		cfg.Address = o.address
	}
	if fs.Changed("listen") {
		cfg.HTTP.Listen = o.listen
	}
	return cfg, cfg.Validate()
}

// serve runs one connection's HTTP surface until ctx ends or the connection
// is lost.
func serve(ctx context.Context, name string, cfg config.Config) error {
	client, err := mpd.Dial(ctx, cfg.Address, mpd.DialOptions{
		Session:  cfg.Session(),
		TLS:      cfg.TLS,
		Password: cfg.Password,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Engine().Done():
			log.Warn().Err(client.Engine().Err()).Msg("connection lost")
			cancel()
		case <-connCtx.Done():
		}
	}()

	server := httpapi.New(connCtx, name, client, cfg.HTTP)
	defer server.Close()
	v, _ := client.Version()
	log.Info().Str("addr", cfg.Address).Str("mpd", v.String()).Str("listen", cfg.HTTP.Listen).Msg("mpdwatch started")
	if err := server.Serve(connCtx); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return client.Engine().Err()
	}
	return nil
}

func main() {
	observability.InitLogger("mpdwatch")
	o, fs, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpdwatch: %v\n", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(o, fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for {
		err := serve(ctx, o.name, cfg)
		if ctx.Err() != nil {
			log.Info().Msg("mpdwatch stopped")
			return
		}
		log.Error().Err(err).Msg("reconnecting")
	}
}
