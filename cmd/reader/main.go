// Command reader runs a card reader station. A keyboard-wedge RFID reader
// types into stdin; every scan is checked in against the selected event.
// Typed lines are commands: "event <id>" switches the event, "list" shows
// today's events.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"eventattendance/backend/internal/client/api"
	"eventattendance/backend/internal/client/scanner"
	"eventattendance/backend/internal/client/terminal"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
)

const namespace = "READER"

type config struct {
	conf.Version
	API       string        `conf:"default:http://localhost:8080"`
	Token     string        `conf:"noprint"`
	PrintedID string        `conf:"help:sign in with this printed id when no token is given"`
	Password  string        `conf:"noprint"`
	Event     int           `conf:"help:event id; defaults to the first ongoing event of today"`
	Timeout   time.Duration `conf:"default:5s"`
	Scanner   struct {
		MaxKeyGap   time.Duration `conf:"default:50ms"`
		MinLength   int           `conf:"default:4"`
		IdleTimeout time.Duration `conf:"default:500ms"`
	}
}

func main() {
	log := log.New(os.Stderr, "READER : ", log.LstdFlags)

	if err := run(log); err != nil {
		log.Println("main: error:", err)
		os.Exit(1)
	}
}

func run(log *log.Logger) error {
	var cfg config
	cfg.Version.SVN = "develop"
	cfg.Version.Desc = "attendance card reader station"

	if err := conf.Parse(os.Args[1:], namespace, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(namespace, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(namespace, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.API, cfg.Token, cfg.Timeout)
	if cfg.Token == "" {
		if cfg.PrintedID == "" {
			return errors.New("either --token or --printed-id is required")
		}
		session, err := client.SignIn(ctx, cfg.PrintedID, cfg.Password)
		if err != nil {
			return errors.Wrap(err, "signing in")
		}
		client = client.WithToken(session.AccessToken)
	}

	if cfg.Event == 0 {
		id, err := pickOngoing(ctx, log, client)
		if err != nil {
			return err
		}
		cfg.Event = id
	}

	term := terminal.New(client, cfg.Event)
	log.Printf("main: checking in to event %d, waiting for cards", cfg.Event)

	entries := make(chan scanner.Entry)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- scanner.Run(ctx, os.Stdin, scanner.Config{
			MaxKeyGap:   cfg.Scanner.MaxKeyGap,
			MinLength:   cfg.Scanner.MinLength,
			IdleTimeout: cfg.Scanner.IdleTimeout,
		}, entries)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-scanErr:
			return err

		case e := <-entries:
			switch e.Kind {
			case scanner.Chip:
				go tap(ctx, log, term, e.Text)
			case scanner.Typed:
				command(ctx, log, client, term, e.Text)
			}
		}
	}
}

func tap(ctx context.Context, log *log.Logger, term *terminal.Terminal, chipID string) {
	res, err := term.Tap(ctx, chipID)
	if err != nil {
		log.Printf("tap %s: %v", chipID, err)
		return
	}

	name := ""
	if res.User.FullName != nil {
		name = *res.User.FullName
	}
	log.Printf("tap %s: %s checked in (%s)", chipID, name, res.Attendance.Status)
}

func command(ctx context.Context, log *log.Logger, client *api.Client, term *terminal.Terminal, line string) {
	fields := strings.Fields(line)

	switch {
	case len(fields) == 2 && fields[0] == "event":
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			log.Printf("event: %q is not an id", fields[1])
			return
		}
		if err := term.Select(id); err != nil {
			log.Printf("event: %v", err)
			return
		}
		log.Printf("event: now checking in to event %d", id)

	case len(fields) == 1 && fields[0] == "list":
		events, err := client.Events(ctx, time.Now().Format("2006-01-02"))
		if err != nil {
			log.Printf("list: %v", err)
			return
		}
		for _, e := range events {
			log.Printf("list: %d %s (%s)", e.ID, eventName(e), e.Gate)
		}

	default:
		log.Printf("typed input ignored: %q", line)
	}
}

func pickOngoing(ctx context.Context, log *log.Logger, client *api.Client) (int, error) {
	events, err := client.Events(ctx, time.Now().Format("2006-01-02"))
	if err != nil {
		return 0, errors.Wrap(err, "listing events")
	}

	for _, e := range events {
		if e.Gate == "ongoing" {
			log.Printf("main: picked ongoing event %d %s", e.ID, eventName(e))
			return e.ID, nil
		}
	}
	return 0, errors.New("no ongoing event today, pass --event")
}

func eventName(e api.Event) string {
	if e.Name == nil {
		return ""
	}
	return *e.Name
}
