package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/chatrelay/auth"
	chatpost "github.com/a-h/chatrelay/handlers/chat/post"
	"github.com/a-h/chatrelay/upstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

type ServeCommand struct {
	ListenAddr            string `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:9020"`
	UpstreamURL           string `help:"The URL of the upstream chat completions endpoint." env:"UPSTREAM_URL" default:"${upstream_url}"`
	UpstreamAPIKeyHeader  string `help:"The header used to send the upstream API key." env:"UPSTREAM_API_KEY_HEADER" default:"${upstream_api_key_header}"`
	UpstreamAPIKey        string `help:"The upstream API key." env:"MESSARI_API_KEY" default:""`
	APIKeysFile           string `help:"A file containing a JSON map of API keys to usernames. If not set, the relay does not require an API key." env:"API_KEYS_FILE" default:""`
	TLSCertFile           string `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile            string `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	LogLevel              string `help:"The log level to use." env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
	ReadHeaderTimeoutSecs int    `help:"The maximum time to read request headers, in seconds." env:"READ_HEADER_TIMEOUT" default:"10"`
}

// newMux wires the relay routes. It's separate from Run so that routing can be
// tested without listening.
func newMux(log *slog.Logger, up chatpost.Upstream, apiKeysFile string) (http.Handler, error) {
	chatHandler, err := auth.Optional(apiKeysFile, chatpost.New(log, up))
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", chatHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return cors.AllowAll().Handler(mux), nil
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	if c.UpstreamAPIKey == "" {
		log.Warn("no upstream API key set, upstream requests will be rejected")
	}
	log.Info("creating upstream client", slog.String("url", c.UpstreamURL), slog.String("header", c.UpstreamAPIKeyHeader))
	up := upstream.New(c.UpstreamURL, c.UpstreamAPIKeyHeader, c.UpstreamAPIKey)

	if c.APIKeysFile == "" {
		log.Warn("no API keys file set, the relay is open to all callers")
	}
	handler, err := newMux(log, up, c.APIKeysFile)
	if err != nil {
		return err
	}

	log.Info("Listening", slog.String("addr", c.ListenAddr))
	s := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(c.ReadHeaderTimeoutSecs) * time.Second,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		err = s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	} else {
		err = s.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
