package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every REST call. The sync core adds no timeout of its own.
const DefaultTimeout = 15 * time.Second

// Client calls the chat service's REST endpoints on behalf of one
// authenticated user. The bearer token is supplied by the caller.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the service rooted at baseURL (e.g. http://host/api).
func New(baseURL, token string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMessages returns the conversation's full message list, oldest first.
//
// This call is read-marking: the service advances the caller's "last
// checked" timestamp for the conversation as a side effect, so every
// successful fetch also means the conversation is read up to now.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var out []wire.Message
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", &out); err != nil {
		return nil, err
	}
	msgs := make([]store.Message, 0, len(out))
	for _, m := range out {
		sm := m.ToStore()
		if sm.ConversationID == "" {
			sm.ConversationID = conversationID
		}
		msgs = append(msgs, sm)
	}
	return msgs, nil
}

// FetchConversationSummaries returns the caller's conversation list.
func (c *Client) FetchConversationSummaries(ctx context.Context) ([]store.ConversationSummary, error) {
	var out []wire.Summary
	if err := c.do(ctx, "fetch conversations", http.MethodGet, "/conversations", &out); err != nil {
		return nil, err
	}
	sums := make([]store.ConversationSummary, 0, len(out))
	for _, s := range out {
		sums = append(sums, s.ToStore())
	}
	return sums, nil
}

// MarkRead advances the caller's read marker for the conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, "mark read", http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/read", nil)
}

// DeleteConversation soft-deletes the conversation for the caller's side.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, "delete conversation", http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return &CollaboratorCallError{Op: op, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &CollaboratorCallError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("chat service call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return &CollaboratorCallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s %s", method, path)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &CollaboratorCallError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
