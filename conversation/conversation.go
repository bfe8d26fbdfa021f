// Package conversation keeps a chat transcript and merges streamed replies
// into it as they arrive.
package conversation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/a-h/chatrelay/models"
)

// ApologyMessage is added to the transcript when a turn fails.
const ApologyMessage = "Sorry, something went wrong. Please try again."

type Sender interface {
	ChatPost(ctx context.Context, req models.ChatPostRequest, f func(ctx context.Context, chunk []byte) error) error
}

type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// Options are sent with every request.
type Options struct {
	Verbosity                models.Verbosity
	ResponseFormat           models.ResponseFormat
	InlineCitations          bool
	GenerateRelatedQuestions int
}

var DefaultOptions = Options{
	Verbosity:                models.VerbosityBalanced,
	ResponseFormat:           models.ResponseFormatMarkdown,
	InlineCitations:          true,
	GenerateRelatedQuestions: 0,
}

// Request creates a request for the given transcript.
func (o Options) Request(messages []models.ChatMessage) models.ChatPostRequest {
	inlineCitations := o.InlineCitations
	generateRelatedQuestions := o.GenerateRelatedQuestions
	return models.ChatPostRequest{
		Messages:                 messages,
		Verbosity:                o.Verbosity,
		ResponseFormat:           o.ResponseFormat,
		InlineCitations:          &inlineCitations,
		GenerateRelatedQuestions: &generateRelatedQuestions,
	}
}

type Option func(*Conversation)

func WithOptions(o Options) Option {
	return func(c *Conversation) {
		c.options = o
	}
}

// WithOnChange sets a function that receives a copy of the transcript after
// every change. It is called outside of any lock, from the goroutine running
// Submit.
func WithOnChange(f func(transcript []models.ChatMessage)) Option {
	return func(c *Conversation) {
		c.onChange = f
	}
}

func New(log *slog.Logger, sender Sender, opts ...Option) *Conversation {
	c := &Conversation{
		log:       log,
		sender:    sender,
		options:   DefaultOptions,
		onChange:  func([]models.ChatMessage) {},
		streaming: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversation allows one submission at a time. A Submit made while another
// is in flight is dropped.
type Conversation struct {
	log      *slog.Logger
	sender   Sender
	options  Options
	onChange func([]models.ChatMessage)

	m          sync.Mutex
	state      State
	transcript []models.ChatMessage
	// streaming is the index of the assistant entry receiving the current
	// reply, or -1 before the first chunk arrives.
	streaming int
}

// Submit sends text as a user message and blocks until the reply has been
// streamed into the transcript. accepted is false, and nothing changes, when
// text is blank or another submission is in flight.
//
// A failed turn adds ApologyMessage to the transcript and returns the cause.
func (c *Conversation) Submit(ctx context.Context, text string) (accepted bool, err error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	c.m.Lock()
	if c.state != StateIdle {
		c.m.Unlock()
		return false, nil
	}
	c.state = StateAwaiting
	c.streaming = -1
	c.transcript = append(c.transcript, models.ChatMessage{Role: models.RoleUser, Content: text})
	snapshot := c.snapshot()
	c.m.Unlock()
	defer c.finish()
	c.onChange(snapshot)

	var reply bytes.Buffer
	f := func(ctx context.Context, chunk []byte) error {
		reply.Write(chunk)
		c.merge(reply.String())
		return nil
	}
	if err = c.sender.ChatPost(ctx, c.options.Request(snapshot), f); err != nil {
		c.log.Error("chat request failed", slog.Int("replyBytes", reply.Len()), slog.Any("error", err))
		c.append(models.ChatMessage{Role: models.RoleAssistant, Content: ApologyMessage})
		return true, err
	}
	c.log.Debug("chat reply complete", slog.Int("replyBytes", reply.Len()))
	return true, nil
}

// merge sets the content of the streaming entry to the whole reply so far,
// adding the entry on the first chunk.
func (c *Conversation) merge(content string) {
	c.m.Lock()
	c.state = StateStreaming
	if c.streaming < 0 {
		c.transcript = append(c.transcript, models.ChatMessage{Role: models.RoleAssistant, Content: content})
		c.streaming = len(c.transcript) - 1
	} else {
		c.transcript[c.streaming].Content = content
	}
	snapshot := c.snapshot()
	c.m.Unlock()
	c.onChange(snapshot)
}

func (c *Conversation) append(msg models.ChatMessage) {
	c.m.Lock()
	c.transcript = append(c.transcript, msg)
	snapshot := c.snapshot()
	c.m.Unlock()
	c.onChange(snapshot)
}

func (c *Conversation) finish() {
	c.m.Lock()
	defer c.m.Unlock()
	c.state = StateIdle
	c.streaming = -1
}

// snapshot must be called with c.m held.
func (c *Conversation) snapshot() []models.ChatMessage {
	return append([]models.ChatMessage(nil), c.transcript...)
}

// Transcript returns a copy of the conversation so far.
func (c *Conversation) Transcript() []models.ChatMessage {
	c.m.Lock()
	defer c.m.Unlock()
	return c.snapshot()
}

func (c *Conversation) State() State {
	c.m.Lock()
	defer c.m.Unlock()
	return c.state
}

// Busy is true while a submission is in flight.
func (c *Conversation) Busy() bool {
	return c.State() != StateIdle
}
