package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ampm/internal/config"
	"github.com/danmuck/ampm/internal/logging"
	"github.com/danmuck/ampm/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ampmserver: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("ampmserver", pflag.ContinueOnError)
	path := flags.StringP("config", "c", "", "server config (toml); defaults apply when empty")
	document := flags.String("document", "", "override config_path, the JSONC document served on /config")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.DefaultServerConfig()
	if *path != "" {
		loaded, err := config.LoadServerConfig(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *document != "" {
		cfg.Server.ConfigPath = *document
	}

	logging.Configure(logging.ProfileRuntime, "ampmserver", cfg.LogFile)
	log.Info().Str("config", *path).Str("document", cfg.Server.ConfigPath).Msg("ampmserver starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(cfg.Server).Run(ctx)
}
