// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command teamsyncd runs the TeamSync collaboration backend.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/teamsync/teamsync/apiserver"
	"github.com/teamsync/teamsync/internal/auth"
	"github.com/teamsync/teamsync/internal/config"
	"github.com/teamsync/teamsync/internal/mongo"
	"github.com/teamsync/teamsync/state"
)

var logger = loggo.GetLogger("teamsync.cmd")

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := gnuflag.String("config", "/etc/teamsync/teamsyncd.yaml", "path to the configuration file")
	gnuflag.Parse(true)

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "teamsyncd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return errors.Trace(err)
	}
	if cfg.LoggingConfig != "" {
		if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
			return errors.Annotate(err, "cannot configure loggers")
		}
	}

	store, err := mongo.Dial(mongo.DialInfo{
		Addrs:    cfg.Mongo.Addrs,
		Database: cfg.Mongo.Database,
		Username: cfg.Mongo.Username,
		Password: cfg.Mongo.Password,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()

	st := state.New(store, clock.WallClock, state.Config{
		RequireRegisterCode: cfg.RequireRegisterCode,
		StatisticsMaxAge:    cfg.StatisticsMaxAge.Duration,
	})

	if a := cfg.BootstrapAdmin; a != nil {
		_, err := st.AddAdmin(a.Name, a.Email, a.Password)
		if err != nil && !errors.Is(err, errors.AlreadyExists) {
			return errors.Annotate(err, "cannot bootstrap admin")
		}
	}

	tokens, err := auth.NewTokenFactory([]byte(cfg.TokenSecret), clock.WallClock)
	if err != nil {
		return errors.Trace(err)
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: apiserver.NewServer(apiserver.Config{
			State:      st,
			Tokens:     tokens,
			SessionTTL: cfg.SessionTTL.Duration,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return errors.Trace(err)
	case sig := <-sigCh:
		logger.Infof("caught %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Annotate(err, "shutdown")
	}
	return nil
}
