// Package client is the terminal side of the chat: it sends requests to the
// chat endpoint and folds the streamed reply into a Transcript.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"eduvia/internal/models"
)

// DefaultHistoryWindow matches the server side window.
const DefaultHistoryWindow = 10

// State is the lifecycle of a single request.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateChange is reported on every transition. Bytes counts the response
// bytes received so far while streaming.
type StateChange struct {
	RequestID string
	State     State
	Bytes     int
}

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat request failed with status %d", e.Code)
	}
	return fmt.Sprintf("chat request failed with status %d: %s", e.Code, e.Message)
}

var errEmptyMessage = errors.New("message is empty")

// Client sends chat requests. A Client may run several Sends at once; each
// owns its own transcript entry.
type Client struct {
	endpoint   string
	httpClient *http.Client
	transcript *Transcript
	window     int
	logger     *slog.Logger
	onState    func(StateChange)

	mu     sync.Mutex
	mode   models.Mode
	userID string
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

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

// WithStateHook reports every request state transition to fn.
func WithStateHook(fn func(StateChange)) Option {
	return func(c *Client) { c.onState = fn }
}

// WithUserID attaches a profile id to each request so the server can award
// coins.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

// New returns a client for the server at baseURL.
func New(baseURL string, tr *Transcript, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/chat",
		httpClient: http.DefaultClient,
		transcript: tr,
		window:     DefaultHistoryWindow,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:       models.ModeNormal,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetMode switches the mode used by later requests.
func (c *Client) SetMode(mode models.Mode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
}

// Mode returns the current mode.
func (c *Client) Mode() models.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Transcript returns the transcript the client writes to.
func (c *Client) Transcript() *Transcript {
	return c.transcript
}

// Send appends message to the transcript, streams the reply into a new
// assistant entry and returns that entry's id. Any failure leaves the entry
// holding FailureText.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errEmptyMessage
	}
	c.mu.Lock()
	mode, userID := c.mode, c.userID
	c.mu.Unlock()

	history := c.transcript.History(c.window)
	c.transcript.AppendUser(message)
	requestID := uuid.NewString()
	c.transcript.Begin(requestID)

	logger := c.logger.With(slog.String("request_id", requestID))
	fail := func(err error) (string, error) {
		_ = c.transcript.Fail(requestID)
		c.report(StateChange{RequestID: requestID, State: StateFailed})
		logger.Debug("chat request failed", slog.Any("error", err))
		return requestID, err
	}

	c.report(StateChange{RequestID: requestID, State: StateSending})
	body, err := json.Marshal(buildRequest(message, history, mode, userID))
	if err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(statusError(resp))
	}

	c.report(StateChange{RequestID: requestID, State: StateStreaming})
	received := 0
	err = Consume(ctx, resp.Body, c.transcript, requestID,
		WithChunkHook(func(n int) {
			received += n
			c.report(StateChange{RequestID: requestID, State: StateStreaming, Bytes: received})
		}),
	)
	if err != nil {
		return fail(err)
	}
	c.report(StateChange{RequestID: requestID, State: StateDone, Bytes: received})
	logger.Debug("chat request completed", slog.Int("bytes", received))
	return requestID, nil
}

func buildRequest(message string, history []models.Turn, mode models.Mode, userID string) models.ChatRequest {
	turns := make([]models.ChatTurn, 0, len(history))
	for _, t := range history {
		turns = append(turns, models.ChatTurn{Role: models.WireRole(t.Role), Content: t.Text})
	}
	return models.ChatRequest{
		Version: models.ChatSchemaVersion,
		Message: message,
		History: turns,
		Mode:    string(mode),
		UserID:  userID,
	}
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: resp.StatusCode, Message: payload.Error}
}

func (c *Client) report(change StateChange) {
	if c.onState != nil {
		c.onState(change)
	}
}
