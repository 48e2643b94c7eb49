package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/hearthcore/hearth/config"
)

// run builds the urfave/cli app, mirroring the teacher's cmd/cmd.go
// control flow: a "server" subcommand that loads config, builds the fx
// app, starts it, and blocks until SIGINT/SIGTERM.
func run() error {
	app := &cli.App{
		Name:  "hearthd",
		Usage: "hearth microkernel host daemon",
		Commands: []*cli.Command{
			serverCommand(),
		},
	}
	return app.Run(os.Args)
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "run the hearth daemon in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: func(c *cli.Context) error {
			flags := pflag.NewFlagSet("hearthd", pflag.ContinueOnError)
			flags.String("log_level", c.String("log-level"), "")
			// viper only lets a flag beat its own defaults and the config
			// file when the flag is marked as changed.
			if c.IsSet("log-level") {
				if err := flags.Set("log_level", c.String("log-level")); err != nil {
					return err
				}
			}

			cfg, err := config.Load(flags)
			if err != nil {
				return err
			}

			level := new(slog.LevelVar)
			var parsed slog.Level
			if err := parsed.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
				level.Set(parsed)
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			config.WatchLogLevel(level)

			fxApp := NewApp(cfg, logger)
			startCtx, cancel := context.WithTimeout(context.Background(), fxStartTimeout)
			defer cancel()
			if err := fxApp.Start(startCtx); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			stopCtx, cancelStop := context.WithTimeout(context.Background(), fxStopTimeout)
			defer cancelStop()
			return fxApp.Stop(stopCtx)
		},
	}
}
