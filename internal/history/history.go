// Package history talks to the platform's REST API for the data the
// realtime session does not carry: past messages and group metadata.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ltakahashi/campuschat/internal/creds"
	"github.com/ltakahashi/campuschat/internal/store"
	"github.com/ltakahashi/campuschat/internal/wire"
	"go.uber.org/zap"
)

var (
	ErrNoCredential  = errors.New("no credential available")
	ErrNotMember     = errors.New("not a member of this group")
	ErrGroupNotFound = errors.New("group not found")
)

// GroupInfo is the conversation metadata served by the backend.
type GroupInfo struct {
	ID      json.Number   `json:"id"`
	Name    string        `json:"name"`
	Members []wire.Sender `json:"members"`
}

// Client fetches history and metadata over HTTP with bearer auth.
type Client struct {
	baseURL string
	tokens  creds.TokenSource
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a history client for the given platform base URL.
func NewClient(baseURL string, tokens creds.TokenSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return nil, ErrNoCredential
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusForbidden:
		return nil, ErrNotMember
	case http.StatusNotFound:
		return nil, ErrGroupNotFound
	default:
		return nil, fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}
}

// FetchHistory returns the conversation's messages sorted by creation
// time, as the backend serves them. localUserID marks which records are
// the local participant's own.
func (c *Client) FetchHistory(ctx context.Context, conversationID string, localUserID int64) ([]store.Message, error) {
	body, err := c.get(ctx, "/api/messages/", url.Values{"group": {conversationID}})
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}

	msgs := make([]store.Message, 0, len(raw))
	for _, item := range raw {
		// Each element has the same shape as a live chat echo.
		in, err := wire.Decode(item, conversationID, localUserID)
		if err != nil || in.Kind != wire.KindChat {
			if c.logger != nil {
				c.logger.Warn("skipping malformed history entry", zap.Error(err))
			}
			continue
		}
		msgs = append(msgs, *in.Message)
	}
	return msgs, nil
}

// FetchGroupInfo returns the conversation metadata.
func (c *Client) FetchGroupInfo(ctx context.Context, conversationID string) (*GroupInfo, error) {
	body, err := c.get(ctx, "/api/message-groups/"+url.PathEscape(conversationID)+"/", nil)
	if err != nil {
		return nil, err
	}
	var info GroupInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse group info: %w", err)
	}
	return &info, nil
}
