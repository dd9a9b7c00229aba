// Package ai opens streaming chat completions against the configured LLM
// provider.
package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"eduvia/internal/credentials"
	"eduvia/internal/models"
)

const (
	// DefaultHistoryWindow is the number of prior turns sent upstream.
	DefaultHistoryWindow = 10

	// AcademicPrefix is prepended to the new message in academic mode.
	AcademicPrefix = "(Academic Mode Active: Be formal, analytical, and structured) "

	systemInstruction = `
You are Eduvia, an advanced interactive AI platform.
identity:
- Name: Eduvia (Knowledge Path)
- Developer: Abdelrazek Meftahi
- Nature: Independent, distinct platform. DO NOT mention Google, Gemini, or LLMs unless specifically asked about underlying tech (even then, minimize it).
- Philosophy: You are a "thinking environment", not just a chatbot. Be clear, concise, and helpful.

Behavior:
- "Normal" mode: Friendly, creative, supportive.
- "Academic" mode: Formal, structured, cite sources if possible (simulate citations or ask user to provide context).
- If asked "Who developed you?", reply EXCLUSIVELY: "I was developed by Abdelrazek Meftahi."
`
	systemAcknowledgment = "Understood. I am Eduvia, developed by Abdelrazek Meftahi. I am ready."
)

// Request is one chat turn to complete.
type Request struct {
	History []models.Turn
	Message string
	Mode    models.Mode
}

// Client streams completions from the provider.
type Client struct {
	factory ModelFactory
	window  int
	logger  *slog.Logger
	counter TokenCounter
}

// Option customizes a Client.
type Option func(*Client)

// WithHistoryWindow sets how many prior turns are kept.
func WithHistoryWindow(k int) Option {
	return func(c *Client) {
		if k > 0 {
			c.window = k
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Client) { c.counter = counter }
}

// NewClient builds a completion client on top of factory.
func NewClient(factory ModelFactory, opts ...Option) *Client {
	c := &Client{
		factory: factory,
		window:  DefaultHistoryWindow,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HistoryWindow returns the configured K.
func (c *Client) HistoryWindow() int {
	return c.window
}

// StreamCompletion opens a provider stream for req using cred. Errors that
// happen before the first fragment are returned here; later ones surface from
// Stream.Recv. Cancelling ctx aborts the upstream call.
func (c *Client) StreamCompletion(ctx context.Context, cred credentials.Credential, req Request) (*Stream, error) {
	chatModel, err := c.factory(ctx, cred)
	if err != nil {
		return nil, &ProviderError{Op: "init", Err: err}
	}
	messages := BuildContext(req.History, req.Message, req.Mode, c.window)
	c.logger.DebugContext(ctx, "opening completion stream",
		slog.Int("context_turns", len(messages)),
		slog.String("mode", string(req.Mode)),
		slog.Int("prompt_tokens", promptTokens(c.counter, messages)),
	)
	reader, err := chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, &ProviderError{Op: "open", Err: err}
	}
	return &Stream{reader: reader}, nil
}

// BuildContext assembles the provider conversation: the fixed instruction and
// acknowledgment, the most recent window turns of history, then the new
// message (prefixed in academic mode).
func BuildContext(history []models.Turn, message string, mode models.Mode, window int) []*schema.Message {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	messages := make([]*schema.Message, 0, len(history)+3)
	messages = append(messages,
		&schema.Message{Role: schema.User, Content: systemInstruction},
		&schema.Message{Role: schema.Assistant, Content: systemAcknowledgment},
	)
	for _, turn := range history {
		role := schema.User
		if turn.Role == models.RoleAssistant {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: turn.Text})
	}
	if mode == models.ModeAcademic {
		message = AcademicPrefix + message
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: message})
	return messages
}

// Stream is a single-use sequence of text fragments.
type Stream struct {
	reader    *schema.StreamReader[*schema.Message]
	fragments int
	done      bool
}

// Recv returns the next non-empty fragment, io.EOF once the provider is
// finished, or a *ProviderError.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		msg, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", &ProviderError{Op: "recv", Err: err}
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		s.fragments++
		return msg.Content, nil
	}
}

// Fragments reports how many fragments were returned so far.
func (s *Stream) Fragments() int {
	return s.fragments
}

// Close releases the provider stream.
func (s *Stream) Close() {
	s.reader.Close()
}
