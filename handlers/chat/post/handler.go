package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/chatrelay/auth"
	"github.com/a-h/chatrelay/eventstream"
	"github.com/a-h/jsonapi"
	"github.com/a-h/respond"
)

// UpstreamErrorMessage is the body returned when the upstream call fails.
const UpstreamErrorMessage = "Error calling upstream API"

type Upstream interface {
	ChatCompletions(ctx context.Context, body []byte) (io.ReadCloser, error)
}

func New(log *slog.Logger, upstream Upstream) Handler {
	return Handler{
		log:      log,
		upstream: upstream,
	}
}

// Handler relays a chat request upstream with streaming enabled, and writes
// the text of each streamed delta to the response as it arrives.
type Handler struct {
	log      *slog.Logger
	upstream Upstream
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log
	if user, ok := auth.GetUser(r); ok {
		log = log.With(slog.String("user", user))
	}

	// Fields are forwarded without validation, only stream is overridden.
	var req map[string]json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&req)
	if err == nil && req == nil {
		err = errors.New("body must be a JSON object")
	}
	if err != nil {
		log.Error("failed to decode body", slog.Any("error", err))
		mRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	req["stream"] = json.RawMessage("true")
	body, err := json.Marshal(req)
	if err != nil {
		log.Error("failed to encode upstream request", slog.Any("error", err))
		mRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		respond.WithError(w, "failed to encode upstream request", http.StatusBadRequest)
		return
	}

	log.Info("forwarding chat request", slog.Int("bytes", len(body)))
	stream, err := h.upstream.ChatCompletions(r.Context(), body)
	if err != nil {
		status := http.StatusBadGateway
		var ise jsonapi.InvalidStatusError
		if errors.As(err, &ise) {
			status = ise.Status
		}
		log.Error("upstream request failed", slog.Int("status", status), slog.Any("error", err))
		mRequestsTotal.WithLabelValues(outcomeUpstreamError).Inc()
		mUpstreamErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		http.Error(w, UpstreamErrorMessage, status)
		return
	}
	defer stream.Close()

	mStreamsInFlight.Inc()
	defer mStreamsInFlight.Dec()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flush(w)

	dec := eventstream.NewDecoder(stream)
	dec.OnParseError = func(line []byte, err error) {
		log.Warn("failed to parse upstream event", slog.String("line", string(line)), slog.Any("error", err))
		mParseErrorsTotal.Inc()
	}
	var fragments int
	for {
		fragment, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("failed to read upstream stream", slog.Int("fragments", fragments), slog.Any("error", err))
				mRequestsTotal.WithLabelValues(outcomeReadError).Inc()
				return
			}
			log.Info("chat response complete", slog.Int("fragments", fragments))
			mRequestsTotal.WithLabelValues(outcomeCompleted).Inc()
			return
		}
		if _, err = io.WriteString(w, fragment); err != nil {
			log.Warn("failed to write fragment", slog.Int("fragments", fragments), slog.Any("error", err))
			mRequestsTotal.WithLabelValues(outcomeClientGone).Inc()
			return
		}
		flush(w)
		fragments++
		mFragmentsTotal.Inc()
	}
}

func flush(w http.ResponseWriter) {
	if flusher, canFlush := w.(http.Flusher); canFlush {
		flusher.Flush()
	}
}
