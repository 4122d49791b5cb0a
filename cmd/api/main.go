package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"
	"eventattendance/backend/internal/commands"
	"eventattendance/backend/internal/middleware"
	"eventattendance/backend/internal/pkg/config"
	"eventattendance/backend/internal/pkg/repository/postgresql"
	"eventattendance/backend/internal/router"

	"github.com/ardanlabs/conf"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

func main() {
	log := log.New(os.Stdout, "ATTENDANCE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	if err := run(log); err != nil {
		log.Println("main: error:", err)
		os.Exit(1)
	}
}

func run(log *log.Logger) error {

	// =========================================================================
	// Configuration

	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := config.Usage(&config.Config{})
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := config.VersionString(&config.Config{})
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := config.String(cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db := postgresql.NewDB(postgresql.Config{
		User:        cfg.DB.User,
		Password:    cfg.DB.Password,
		Host:        cfg.DB.Host,
		Name:        cfg.DB.Name,
		DisableTLS:  cfg.DB.DisableTLS,
		Debug:       cfg.DB.Debug,
		LockTimeout: cfg.DB.LockTimeout,
	})
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		db.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.StatusCheck(ctx); err != nil {
		return errors.Wrap(err, "connecting to db")
	}

	if cfg.Args.Num(0) == "migrate" {
		return commands.MigrateUP(context.Background(), log, db)
	}

	// =========================================================================
	// Start Redis

	var rdb *redis.Client
	if cfg.Redis.Disabled {
		log.Println("main: Redis disabled, attendee lists are always re-read")
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("main: Redis unavailable at %s: %v", cfg.Redis.Addr, err)
		}
	}

	// =========================================================================
	// Initialize authentication support

	authenticator, err := auth.New(cfg.Auth.JWTKey, cfg.Auth.TokenTTL)
	if err != nil {
		return errors.Wrap(err, "constructing authenticator")
	}

	if err := os.MkdirAll(cfg.Web.MediaDir, 0o755); err != nil {
		return errors.Wrap(err, "creating media dir")
	}

	// =========================================================================
	// Start API Service

	gin.SetMode(gin.ReleaseMode)

	app := web.NewApp(log, middleware.Logger(log), middleware.Panics(log))
	router.NewRouter(app, db, rdb, authenticator, router.Options{
		MediaDir:       cfg.Web.MediaDir,
		AllowedOrigins: cfg.Web.AllowedOrigins,
		FuzzyCardBind:  cfg.Checkin.FuzzyCardBind,
		SnapshotTTL:    cfg.Checkin.SnapshotTTL,
	}).Init()

	api := http.Server{
		Addr:         cfg.Web.Host,
		Handler:      app,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("main: API listening on %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		log.Printf("main: %v : Start shutdown", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}

	return nil
}
