// grapevine/main.go

// Command grapevine is a terminal agent for the Grapevine MUD chat network.
// Credentials and connection settings come from the environment (a .env file
// is honored when present); flags refine them per command.
//
//	grapevine tail              stream every network event to stdout
//	grapevine bridge --roster   follow a roster file and announce sign-ins,
//	                            optionally mirroring events onto NATS
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	grapevine "github.com/envis10n/go-grapevine"
	natsbus "github.com/envis10n/go-grapevine/pkg/bus/nats"
	"github.com/envis10n/go-grapevine/pkg/rosterwatch"
)

// Config is the environment-driven configuration shared by every command.
type Config struct {
	ClientID     string   `env:"GRAPEVINE_CLIENT_ID"`
	ClientSecret string   `env:"GRAPEVINE_CLIENT_SECRET"`
	URL          string   `env:"GRAPEVINE_URL"`
	Game         string   `env:"GRAPEVINE_GAME"`
	Channels     []string `env:"GRAPEVINE_CHANNELS" envSeparator:","`
	NATSURL      string   `env:"GRAPEVINE_NATS_URL"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "grapevine",
		Usage:   "agent for the Grapevine MUD chat network",
		Version: "1.2.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("GRAPEVINE_DEBUG"),
			},
		},
		Commands: []*cli.Command{
			tailCommand(),
			bridgeCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "grapevine:", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", "error", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return Config{}, errors.New("GRAPEVINE_CLIENT_ID and GRAPEVINE_CLIENT_SECRET must be set")
	}
	return cfg, nil
}

func clientOptions(cfg Config, logger *slog.Logger) []grapevine.Option {
	opts := []grapevine.Option{grapevine.WithLogger(logger)}
	if cfg.URL != "" {
		opts = append(opts, grapevine.WithURL(cfg.URL))
	}
	if cfg.Game != "" {
		opts = append(opts, grapevine.WithGame(cfg.Game))
	}
	if len(cfg.Channels) > 0 {
		opts = append(opts, grapevine.WithChannels(cfg.Channels...))
	}
	return opts
}

func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "connect and stream network events to stdout",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "topic",
				Usage: "topic to follow (repeatable; default is everything)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("debug"))
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			gv, err := grapevine.Connect(ctx, cfg.ClientID, cfg.ClientSecret, clientOptions(cfg, logger)...)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer gv.Close()

			if err := gv.AwaitReady(ctx); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			logger.Info("authenticated, tailing events", "url", cfg.URL)

			sub, err := gv.Notify(cmd.StringSlice("topic")...)
			if err != nil {
				return err
			}
			defer sub.Cancel()

			for {
				select {
				case <-ctx.Done():
					return gv.Close()
				case note, ok := <-sub.C:
					if !ok {
						return nil
					}
					logNote(logger, note)
				}
			}
		},
	}
}

func bridgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "bridge",
		Usage: "follow a roster file, announcing sign-ins and sign-outs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "roster",
				Usage:    "path to a newline-delimited player roster file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "mirror events onto this NATS server",
			},
			&cli.StringFlag{
				Name:  "subject-prefix",
				Usage: "prefix for mirrored NATS subjects",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("debug"))
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}

			opts := clientOptions(cfg, logger)
			natsURL := cmd.String("nats-url")
			if natsURL == "" {
				natsURL = cfg.NATSURL
			}
			if natsURL != "" {
				mirror, err := natsbus.New(logger, natsbus.Options{
					URL:           natsURL,
					SubjectPrefix: cmd.String("subject-prefix"),
				})
				if err != nil {
					return fmt.Errorf("connect to NATS: %w", err)
				}
				defer mirror.Close()
				opts = append(opts, grapevine.WithDispatcher(mirror))
			}

			gv, err := grapevine.Connect(ctx, cfg.ClientID, cfg.ClientSecret, opts...)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer gv.Close()

			if err := gv.AwaitReady(ctx); err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}

			watcher, err := rosterwatch.New(gv, rosterwatch.Options{
				Path:   cmd.String("roster"),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("watch roster: %w", err)
			}
			defer watcher.Stop()

			logger.Info("bridge running",
				"roster", cmd.String("roster"),
				"nats", natsURL != "",
				"players", gv.Players())

			<-ctx.Done()
			logger.Info("shutting down")
			return gv.Close()
		},
	}
}

// logNote prints one note. Wire envelopes get their event, ref and raw
// payload; parse failures surface as warnings without ending the tail.
func logNote(logger *slog.Logger, n grapevine.Note) {
	attrs := []any{"topic", n.Topic}
	if n.Env != nil {
		attrs = append(attrs, "event", n.Env.Event)
		if n.Env.Ref != "" {
			attrs = append(attrs, "ref", n.Env.Ref)
		}
		if n.Env.Status != "" {
			attrs = append(attrs, "status", n.Env.Status)
		}
		if len(n.Env.Error) > 0 {
			attrs = append(attrs, "error", string(n.Env.Error))
		}
		if len(n.Env.Payload) > 0 {
			attrs = append(attrs, "payload", string(n.Env.Payload))
		}
	}
	if n.Err != nil {
		logger.Warn("note", append(attrs, "error", n.Err)...)
		return
	}
	logger.Info("note", attrs...)
}
