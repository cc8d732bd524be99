package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"clubsync/internal/app"
	"clubsync/internal/config"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "clubsync",
		Usage: "Bridge club event records with a calendar and a chat bot.",
		Commands: []*cli.Command{
			serveCommand(),
			syncCommand(),
			remindCommand(),
			watchCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook and feed HTTP server.",
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Logger.Info("Server listening", "addr", a.Config.ListenAddr)
			srv := &http.Server{
				Addr:              a.Config.ListenAddr,
				Handler:           a.Server,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return srv.ListenAndServe()
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push event records to the calendar.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "watch", Usage: "Rerun the push sync every N seconds."},
		},
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				a.Logger.Info("Starting sync watcher", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					if _, err := a.Syncer.Push(c.Context); err != nil {
						a.Logger.Error("Push sync failed", "error", err)
					}
				}
				return nil
			}

			count, err := a.Syncer.Push(c.Context)
			if err != nil {
				return fmt.Errorf("push sync failed: %w", err)
			}
			a.Logger.Info("Push sync finished", "count", count)
			return nil
		},
	}
}

func remindCommand() *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Send new-event notices and day-before reminders.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "new", Usage: "Only announce events created today."},
			&cli.BoolFlag{Name: "tomorrow", Usage: "Only remind members joined to tomorrow's events."},
		},
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			runNew := c.Bool("new")
			runTomorrow := c.Bool("tomorrow")
			if !runNew && !runTomorrow {
				runNew, runTomorrow = true, true
			}
			if runNew {
				if _, err := a.Notifier.NotifyNewEvents(c.Context); err != nil {
					return fmt.Errorf("new-event notifications failed: %w", err)
				}
			}
			if runTomorrow {
				if _, err := a.Notifier.RemindTomorrow(c.Context); err != nil {
					return fmt.Errorf("reminders failed: %w", err)
				}
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Register the calendar push-notification channel.",
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			address := a.Config.WatchAddress()
			if address == "" {
				return fmt.Errorf("WEBHOOK_BASE_URL is not configured")
			}
			channel, err := a.Calendar.Watch(c.Context, address)
			if err != nil {
				return err
			}
			a.Logger.Info("Watch channel registered", "channelID", channel.Id)
			return nil
		},
	}
}

func loadApp(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)
	return app.Load(c.Context, cfg, logger)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
