package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/authsession/cmd/cli/internal/commands"
	"github.com/wolfeidau/authsession/internal/config"
	"github.com/wolfeidau/authsession/internal/logger"
	"github.com/wolfeidau/authsession/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login  commands.LoginCmd  `cmd:"" help:"Log in with email and password"`
		Logout commands.LogoutCmd `cmd:"" help:"End the current session"`
		Status commands.StatusCmd `cmd:"" help:"Show the current session status"`
		Token  commands.TokenCmd  `cmd:"" help:"Print the session token"`
		Whoami commands.WhoamiCmd `cmd:"" help:"Show the logged in user"`
		Call   commands.CallCmd   `cmd:"" help:"Call an API procedure with the session token"`

		Config      string        `help:"Client profile path (default: ~/.authsession/config.yaml)" env:"AUTHSESSION_CONFIG" type:"path"`
		Server      string        `help:"Server URL" env:"AUTHSESSION_SERVER"`
		Timeout     time.Duration `help:"HTTP request timeout" env:"AUTHSESSION_TIMEOUT"`
		Store       string        `help:"Token store backend" placeholder:"file|redis|memory" env:"AUTHSESSION_STORE"`
		StoreDir    string        `help:"Base directory of the file token store" env:"AUTHSESSION_STORE_DIR" type:"path"`
		Scope       string        `help:"Token store scope (default: derived from the server URL)" env:"AUTHSESSION_SCOPE"`
		RedisAddr   string        `help:"Redis address for the redis token store" env:"AUTHSESSION_REDIS_ADDR"`
		RedisPrefix string        `help:"Redis key prefix" env:"AUTHSESSION_REDIS_PREFIX"`
		CacheDir    string        `help:"Profile response cache directory (default: in memory)" env:"AUTHSESSION_CACHE_DIR" type:"path"`

		Debug   bool `help:"Enable debug mode." env:"AUTHSESSION_DEBUG"`
		Otel    bool `help:"Export metrics over OTLP." env:"AUTHSESSION_OTEL"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("authsession"),
		kong.Description("Client side session manager for the point of sale API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	shutdown := func(context.Context) error { return nil }
	if cli.Otel {
		var err error
		shutdown, err = telemetry.InitTelemetry(ctx, "authsession", version)
		cmd.FatalIfErrorf(err)
	}

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigPath: cli.Config,
		Overrides: config.Profile{
			ServerURL: cli.Server,
			Timeout:   cli.Timeout,
			CacheDir:  cli.CacheDir,
			Store: config.StoreConfig{
				Backend:     cli.Store,
				Dir:         cli.StoreDir,
				Scope:       cli.Scope,
				RedisAddr:   cli.RedisAddr,
				RedisPrefix: cli.RedisPrefix,
			},
		},
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to flush metrics")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
