package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/jsonapi"
)

const (
	DefaultURL          = "https://api.messari.io/ai/openai/chat/completions"
	DefaultAPIKeyHeader = "X-MESSARI-API-KEY"
)

// maxErrorBody limits how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

func New(url, apiKeyHeader, apiKey string) Client {
	return Client{
		url:          url,
		apiKeyHeader: apiKeyHeader,
		apiKey:       apiKey,
	}
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	url          string
	apiKeyHeader string
	apiKey       string
}

// ChatCompletions posts body as-is and returns the streaming response body.
// Non-2xx responses are returned as jsonapi.InvalidStatusError.
func (c Client) ChatCompletions(ctx context.Context, body []byte) (stream io.ReadCloser, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq,
		jsonapi.WithRequestHeader("Content-Type", "application/json"),
		jsonapi.WithRequestHeader("Accept", "text/event-stream"),
		jsonapi.WithRequestHeader(c.apiKeyHeader, c.apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to perform HTTP request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(errBody),
		}
	}
	return res.Body, nil
}
