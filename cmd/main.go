package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/vkm/internal/services"
	"github.com/desertthunder/vkm/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger, ConfigPath: defaultConfigPath})
	err := runner.app().Run(ctx, os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}

	switch {
	case err == nil:
	case errors.Is(err, services.ErrCredentials):
		logger.Fatal("invalid login or password")
	default:
		logger.Fatalf("application error: %v", err)
	}
}
