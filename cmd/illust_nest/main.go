package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"illust_nest/internal/app"
	"illust_nest/internal/config"
	"illust_nest/internal/lib/logger/sl"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	application, err := app.New(log, cfg)
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	c := &cli{
		app: application,
		log: log,
		out: os.Stdout,
		in:  bufio.NewReader(os.Stdin),
	}

	err = c.run(ctx, config.CommandArgs(os.Args[1:]))

	stop()
	closeApp(log, application)

	if err != nil {
		c.fail(err)
		os.Exit(1)
	}
}

func closeApp(log *slog.Logger, c io.Closer) {
	const op = "main.closeApp"

	if err := c.Close(); err != nil {
		log.Warn("close failed", slog.String("op", op), sl.Err(err))
	}
}

// setupLogger writes to stderr so command output on stdout stays clean.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}

	return log
}
