// Command watch prints new arrivals of an event as they check in.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventattendance/backend/internal/client/api"
	"eventattendance/backend/internal/client/watch"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
)

const namespace = "WATCH"

type config struct {
	conf.Version
	API      string        `conf:"default:http://localhost:8080"`
	Token    string        `conf:"noprint"`
	Event    int           `conf:"required"`
	Interval time.Duration `conf:"default:3s"`
	Ambient  bool          `conf:"help:poll at the background interval"`
	Timeout  time.Duration `conf:"default:5s"`
}

func main() {
	log := log.New(os.Stderr, "WATCH : ", log.LstdFlags)

	if err := run(log); err != nil {
		log.Println("main: error:", err)
		os.Exit(1)
	}
}

func run(log *log.Logger) error {
	var cfg config
	cfg.Version.SVN = "develop"
	cfg.Version.Desc = "attendance arrival watcher"

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

	interval := cfg.Interval
	if cfg.Ambient {
		interval = watch.AmbientInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.API, cfg.Token, cfg.Timeout)

	session := watch.NewSession(client, cfg.Event, interval, func(b watch.Batch) {
		for _, id := range b.UserIDs {
			fmt.Printf("%s arrived: user %d\n", b.At.Format("15:04:05"), id)
		}
	}, log)

	log.Printf("main: session %s watching event %d every %s", session.ID, cfg.Event, interval)
	session.Start(ctx)
	defer session.Stop()

	<-ctx.Done()
	return nil
}
