package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fatih/color"

	"cragcast/internal/session"
	"cragcast/internal/timer"
)

var (
	okColor    = color.New(color.FgGreen)
	dimColor   = color.New(color.FgHiBlack)
	alertColor = color.New(color.FgYellow, color.Bold)
)

func (a *app) runSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	user := fs.String("user", "", "user id (defaults to $CRAGCAST_USER or $USER)")
	location := fs.String("location", "", "where you are climbing")
	energy := fs.Int("energy", 5, "energy level 0-10")
	id := fs.String("id", "", "session id")
	quality := fs.Int("quality", 0, "session quality 1-5, 0 to skip")
	notes := fs.String("notes", "", "session notes")
	watch := fs.Bool("watch", false, "keep polling for the active session")

	action, err := subcommand(fs, args, "start", "status", "end")
	if err != nil {
		return err
	}

	switch action {
	case "start":
		sess, clock, err := a.sessions.Start(ctx, userID(*user), *location, *energy)
		if err != nil {
			return err
		}
		okColor.Printf("Session %s started", sess.ID)
		fmt.Printf(" at %s\n", clock.StartedAt.Local().Format(time.Kitchen))
		return nil

	case "status":
		loc := a.sessions.Locator(userID(*user))
		if !*watch {
			printStatus(loc.Check(ctx, nil))
			return nil
		}
		loc.Run(ctx, a.cfg.ActivePollInterval, printStatus)
		return nil

	default:
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		d := session.EndDetails{Notes: *notes}
		if *quality != 0 {
			d.Quality = quality
		}
		sess, err := a.sessions.End(ctx, *id, d)
		if err != nil {
			return err
		}
		okColor.Printf("Session %s ended", sess.ID)
		if sess.EndedAt != nil {
			fmt.Printf(" after %s", timer.FormatHMS(int(sess.EndedAt.Sub(sess.StartedAt).Seconds())))
		}
		fmt.Println()
		return nil
	}
}

func printStatus(st session.Status) {
	if !st.Active {
		dimColor.Println("No active session")
		return
	}
	okColor.Printf("Active session %s", st.SessionID)
	fmt.Printf(" (started %s ago)\n", sinceStart(st.StartedAt))
}

func (a *app) runClock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clock", flag.ContinueOnError)
	id := fs.String("id", "", "session id")
	action, err := subcommand(fs, args, "watch", "pause", "resume")
	if err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	clock, err := a.sessions.Clock(ctx, *id)
	if err != nil {
		return err
	}
	switch action {
	case "pause":
		err = clock.Pause(ctx)
	case "resume":
		err = clock.Resume(ctx)
	default:
		clock.Run(ctx, time.Second, func(s timer.ClockSnapshot) {
			fmt.Printf("\r%s  %s ", timer.FormatHMS(s.Seconds()), dimColor.Sprint(s.State))
		})
		fmt.Println()
		return nil
	}
	if err != nil {
		return err
	}
	printClock(clock.Snapshot())
	return nil
}

func printClock(s timer.ClockSnapshot) {
	fmt.Printf("%s  %s\n", timer.FormatHMS(s.Seconds()), dimColor.Sprint(s.State))
}

func (a *app) runRest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rest", flag.ContinueOnError)
	id := fs.String("id", "", "session id")
	minutes := fs.Int("minutes", timer.DefaultRestMinutes, "rest length in minutes")
	action, err := subcommand(fs, args, "configure", "start", "pause", "resume", "reset", "watch")
	if err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	rest, err := a.sessions.Rest(ctx, *id)
	if err != nil {
		return err
	}
	switch action {
	case "configure":
		_, err = rest.Configure(ctx, *minutes)
	case "start":
		err = rest.Start(ctx)
	case "pause":
		err = rest.Pause(ctx)
	case "resume":
		err = rest.Resume(ctx)
	case "reset":
		rest.Reset(ctx)
	default:
		rest.Run(ctx, time.Second, func(s timer.RestSnapshot) {
			if s.State == timer.RestStateFinished {
				alertColor.Print("\rRest over, back on the wall!   ")
				return
			}
			fmt.Printf("\r%s  %s ", timer.FormatHMS(s.Remaining), dimColor.Sprint(s.State))
		})
		fmt.Println()
		return nil
	}
	if err != nil {
		return err
	}
	printRest(rest.Tick(ctx))
	return nil
}

func printRest(s timer.RestSnapshot) {
	fmt.Printf("%s  %s  (%d min)\n", timer.FormatHMS(s.Remaining), dimColor.Sprint(s.State), s.Minutes)
}
