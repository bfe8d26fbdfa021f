package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/a-h/chatrelay/upstream"
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

type CLI struct {
	Serve   ServeCommand   `cmd:"serve" help:"Start the chat relay."`
	Chat    ChatCommand    `cmd:"chat" help:"Chat through the relay in the terminal."`
	Ask     AskCommand     `cmd:"ask" help:"Ask a single question and stream the answer to stdout."`
	Version VersionCommand `cmd:"version" help:"Print the version of the chat relay."`
}

func main() {
	// Values in .env don't override the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		getLogger("warn").Warn("failed to load .env file", slog.Any("error", err))
	}
	var cli CLI
	ctx := context.Background()
	kctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Vars{
			"upstream_url":            upstream.DefaultURL,
			"upstream_api_key_header": upstream.DefaultAPIKeyHeader,
		},
	)
	if err := kctx.Run(); err != nil {
		log := getLogger("error")
		log.Error("error", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getLogger(level string) *slog.Logger {
	return newLogger(os.Stderr, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}
