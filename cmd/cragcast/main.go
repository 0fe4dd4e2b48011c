// Command cragcast is the terminal client: climbing forecasts for a crag,
// and the session clock and rest timer used while climbing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cragcast/internal/config"
	"cragcast/internal/events"
	"cragcast/internal/localstore"
	"cragcast/internal/session"
	"cragcast/internal/store"
)

const usage = `Usage: cragcast <command> [flags]

Commands:
  forecast   climbing conditions for a location or named crag
  session    start | status | end a climbing session
  clock      watch | pause | resume the session clock
  rest       configure | start | pause | resume | reset | watch the rest timer

Run "cragcast <command> -h" for command flags.
`

func main() {
	verbose := os.Getenv("CRAGCAST_VERBOSE") != ""
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "forecast":
		err = runForecast(ctx, cfg, args)
	case "session":
		err = withSessions(ctx, cfg, func(a *app) error { return a.runSession(ctx, args) })
	case "clock":
		err = withSessions(ctx, cfg, func(a *app) error { return a.runClock(ctx, args) })
	case "rest":
		err = withSessions(ctx, cfg, func(a *app) error { return a.runRest(ctx, args) })
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      config.Config
	sessions *session.Service
}

// withSessions opens the local timer database and, if configured, the
// PostgreSQL session store, and hands a ready session service to fn.
func withSessions(ctx context.Context, cfg config.Config, fn func(*app) error) error {
	local, err := localstore.Open(cfg.TimerDBPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.TimerDBPath, err)
	}
	defer local.Close()

	var sessions session.Store = local
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		sessions = db
	}

	return fn(&app{
		cfg:      cfg,
		sessions: session.NewService(sessions, local, events.NewBus()),
	})
}

// subcommand splits "<action> [flags]" and parses the flags.
func subcommand(fs *flag.FlagSet, args []string, actions ...string) (string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", fmt.Errorf("%s needs an action: %s", fs.Name(), strings.Join(actions, " | "))
	}
	action := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	for _, a := range actions {
		if a == action {
			return action, nil
		}
	}
	return "", fmt.Errorf("unknown %s action %q", fs.Name(), action)
}

// userID falls back to the local account name.
func userID(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if u := os.Getenv("CRAGCAST_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}

func sinceStart(t time.Time) string {
	return time.Since(t).Round(time.Second).String()
}
