package main

import (
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hearthcore/hearth/config"
	"github.com/hearthcore/hearth/internal/hearth"
)

const (
	fxStartTimeout = 30 * time.Second
	fxStopTimeout  = 15 * time.Second
)

// NewApp mirrors the teacher's cmd/fx.go NewApp almost exactly: provide
// the already-loaded config and logger, then pull in every domain
// module (here, just hearth.Module, which itself wires mailboxes, the
// process table, the lump store, the dispatcher, the registry and the
// IPC surface).
func NewApp(cfg *config.Config, logger *slog.Logger) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *slog.Logger { return logger },
		),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: l}
		}),
		hearth.Module,
	)
}
