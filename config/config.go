// Package config loads the daemon's configuration from the file named
// by HEARTH_CONFIG, with HEARTH_PEER_ID overriding whatever peer id the
// file specifies. Grounded on the teacher's cmd/cmd.go and cmd/fx.go
// call sites (config.LoadConfig() feeding a single *Config into
// fx.New) — the teacher's own config package wasn't part of the
// retrieved pack, so the shape is preserved but the contents are new.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of options spec.md §6 recognizes.
type Config struct {
	PeerID                  string `mapstructure:"peer_id"`
	ListenAddress           string `mapstructure:"listen_address"`
	IPCPath                 string `mapstructure:"ipc_path"`
	LumpCacheBytes          int64  `mapstructure:"lump_cache_bytes"`
	LumpDiskPath            string `mapstructure:"lump_disk_path"`
	GuestInstructionSlice   int    `mapstructure:"guest_instruction_slice"`
	MailboxDefaultCapacity  int    `mapstructure:"mailbox_default_capacity"`
	DispatchWorkers         int    `mapstructure:"dispatch_workers"`
	DispatchRatePerSec      float64 `mapstructure:"dispatch_rate_per_sec"`
	DispatchBurst           int    `mapstructure:"dispatch_burst"`
	LogLevel                string `mapstructure:"log_level"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen_address", "127.0.0.1:4040")
	v.SetDefault("ipc_path", "/tmp/hearth.sock")
	v.SetDefault("lump_cache_bytes", int64(256<<20))
	v.SetDefault("lump_disk_path", "/var/lib/hearth/lumps.db")
	v.SetDefault("guest_instruction_slice", 100_000)
	v.SetDefault("mailbox_default_capacity", 256)
	v.SetDefault("dispatch_workers", 8)
	v.SetDefault("dispatch_rate_per_sec", 10_000.0)
	v.SetDefault("dispatch_burst", 1_000)
	v.SetDefault("log_level", "info")
}

// Load reads HEARTH_CONFIG (a path to a YAML/JSON/TOML file — viper
// sniffs the extension), applies HEARTH_PEER_ID as an override, and
// wires flags so `hearthd server --log-level debug` also works.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if peerID := os.Getenv("HEARTH_PEER_ID"); peerID != "" {
		cfg.PeerID = peerID
	}
	if cfg.PeerID == "" {
		return nil, fmt.Errorf("config: peer id not set (HEARTH_PEER_ID or peer_id in HEARTH_CONFIG)")
	}

	return &cfg, nil
}

// WatchLogLevel live-reloads the log level whenever the HEARTH_CONFIG
// file changes on disk, adjusting level in place without restarting the
// daemon.
func WatchLogLevel(level *slog.LevelVar) {
	path := os.Getenv("HEARTH_CONFIG")
	if path == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			return
		}
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(v.GetString("log_level"))); err == nil {
			level.Set(parsed)
		}
	})
	v.WatchConfig()
}
