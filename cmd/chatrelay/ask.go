package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/a-h/chatrelay/client"
	"github.com/a-h/chatrelay/conversation"
	"github.com/a-h/chatrelay/models"
)

type AskCommand struct {
	RelayURL       string `help:"The URL of the chat relay." env:"RELAY_URL" default:"http://localhost:9020"`
	RelayAPIKey    string `help:"The API key for the chat relay." env:"RELAY_API_KEY" default:""`
	Verbosity      string `help:"How much detail to ask for." env:"VERBOSITY" default:"balanced" enum:"balanced,concise,detailed"`
	ResponseFormat string `help:"The format of the answer." env:"RESPONSE_FORMAT" default:"markdown" enum:"plaintext,markdown"`
	Question       string `arg:"" help:"The question to ask."`
	LogLevel       string `help:"The log level to use." env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
}

func (c AskCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	opts := conversation.DefaultOptions
	opts.Verbosity = models.Verbosity(c.Verbosity)
	opts.ResponseFormat = models.ResponseFormat(c.ResponseFormat)
	req := opts.Request([]models.ChatMessage{
		{Role: models.RoleUser, Content: c.Question},
	})

	log.Debug("asking question", slog.String("relay", c.RelayURL))
	rc := client.New(c.RelayURL, c.RelayAPIKey)
	f := func(ctx context.Context, chunk []byte) error {
		_, err := os.Stdout.Write(chunk)
		return err
	}
	if err = rc.ChatPost(ctx, req, f); err != nil {
		return fmt.Errorf("failed to ask question: %w", err)
	}
	fmt.Println()
	return nil
}
