package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/ampm/internal/config"
	"github.com/danmuck/ampm/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	logging.ConfigureRuntime("configgen")
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case "client":
		return "cmd/ampmclient/config.toml", nil
	case "server":
		return "cmd/ampmserver/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := flags.String("kind", "server", "config kind: server|client")
	output := flags.String("output", "", "output path for config template")
	validate := flags.Bool("validate", false, "validate an existing config file")
	input := flags.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flags.Bool("force", false, "overwrite existing config file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *validate {
		path := *input
		if path == "" {
			p, err := defaultPath(*kind)
			if err != nil {
				return err
			}
			path = p
		}
		var err error
		switch *kind {
		case "client":
			_, err = config.LoadClientConfig(path)
		case "server":
			_, err = config.LoadServerConfig(path)
		default:
			err = fmt.Errorf("unknown kind: %s", *kind)
		}
		if err != nil {
			return err
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("config validated")
		return nil
	}

	target := *output
	if target == "" {
		p, err := defaultPath(*kind)
		if err != nil {
			return err
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("config template written")
	return nil
}
