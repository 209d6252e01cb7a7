package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Initialize context that cancelled on SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Getenv, os.Getwd, os.Args[1:])
	if err != nil {
		slog.Error("videotube stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

// Config is resolved as: defaults < .env < environment < flags
func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	c := NewConfig()

	err := c.LoadDotEnv(getwd)
	if err != nil {
		return fmt.Errorf("can't load .env. Err: %w", err)
	}
	err = c.LoadEnv(getenv)
	if err != nil {
		return err
	}
	err = c.ParseFlags(args)
	if err != nil {
		return err
	}
	err = c.Validate()
	if err != nil {
		return err
	}

	srv, err := NewServerApp(ctx, c)
	if err != nil {
		return fmt.Errorf("can't initialize app, sorry. Err: %w", err)
	}

	err = srv.Run(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
