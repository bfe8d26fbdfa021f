package post

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_chat_requests_total",
		Help: "The total number of chat requests handled, by outcome.",
	}, []string{"outcome"})

	mUpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_upstream_errors_total",
		Help: "The total number of failed upstream calls, by the status code returned to the caller.",
	}, []string{"status"})

	mFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_fragments_total",
		Help: "The total number of text fragments relayed to callers.",
	})

	mParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_event_parse_errors_total",
		Help: "The total number of upstream event lines that could not be parsed.",
	})

	mStreamsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_chat_streams_in_flight",
		Help: "The number of chat responses currently being streamed.",
	})
)

const (
	outcomeBadRequest    = "bad_request"
	outcomeUpstreamError = "upstream_error"
	outcomeCompleted     = "completed"
	outcomeReadError     = "read_error"
	outcomeClientGone    = "client_gone"
)
