package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/ikflowgo/internal/app"
	"github.com/specialistvlad/ikflowgo/internal/cli"
)

// main is the entrypoint for the ikflow application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:], os.LookupEnv)
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, logW io.Writer, args []string, lookup app.LookupFunc) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW, lookup)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application panicked: %v", r)
		}
	}()

	ikflowApp := app.NewApp(logW, outW, appConfig, app.WithEnv(lookup))
	return ikflowApp.Run(ctx)
}
