package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/ampm/internal/config"
	"github.com/danmuck/ampm/internal/logging"
	"github.com/danmuck/ampm/internal/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// ampmclient is a stand-in host application: it heartbeats on every tick and
// exercises the rest of the telemetry surface once at startup.
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ampmclient: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("ampmclient", pflag.ContinueOnError)
	path := flags.StringP("config", "c", "", "client config (toml); defaults apply when empty")
	ticks := flags.Int("ticks", 0, "stop after this many heartbeats (0 runs until interrupted)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.DefaultClientConfig()
	if *path != "" {
		loaded, err := config.LoadClientConfig(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	logging.Configure(logging.ProfileRuntime, "ampmclient", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := telemetry.New(cfg.Telemetry, telemetry.WithHandler(telemetry.RouteAppState, func(in telemetry.Inbound) {
		log.Info().Str("from", in.From.String()).Str("state", in.Payload).Msg("app state")
	}))
	if err != nil {
		return err
	}
	defer client.Close()

	return loop(telemetry.NewContext(ctx, client), cfg.Tick, *ticks)
}

func loop(ctx context.Context, tick time.Duration, limit int) error {
	client, ok := telemetry.FromContext(ctx)
	if !ok {
		return errors.New("no telemetry client in context")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	res := client.GetConfig(fetchCtx)
	cancel()
	if res.OK() {
		log.Info().Int("keys", len(res.Document)).Msg("config loaded")
	}

	client.SendEvent("app", "start", "ampmclient", 0)
	client.LogInfof("ampmclient running, tick=%s", tick)
	client.RequestAppState()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for n := 0; limit <= 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			client.SendEvent("app", "stop", "signal", n)
			return nil
		case <-ticker.C:
			client.Update()
		}
	}
	client.SendEvent("app", "stop", "ticks", limit)
	return nil
}
