// Package rpc is the HTTP client for the plushub API. It implements the
// mutation senders used by the component models and caches query results
// by topic.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/plushub/internal/adapters/http/api"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Client talks to the plushub HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	user    model.UserID
	cache   *querycache.Cache
	logger  logger.Logger
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = querycache.New()
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("rpc")
	}
	return c
}

// Cache returns the query cache. Pass it to components as their
// invalidator.
func (c *Client) Cache() *querycache.Cache { return c.cache }

// User returns the user the client acts as.
func (c *Client) User() model.UserID { return c.user }

// Suggest sends "plus.suggestion".
func (c *Client) Suggest(ctx context.Context, req model.SuggestionRequest) error {
	_, err := c.SuggestDetailed(ctx, req)
	return err
}

// SuggestDetailed sends "plus.suggestion" and returns the server's answer.
func (c *Client) SuggestDetailed(ctx context.Context, req model.SuggestionRequest) (api.SuggestionResponse, error) {
	var resp api.SuggestionResponse
	err := c.do(ctx, http.MethodPost, "/plus/suggestion", req, &resp)
	return resp, err
}

// Vouch sends "plus.vouch".
func (c *Client) Vouch(ctx context.Context, req model.VouchRequest) error {
	return c.do(ctx, http.MethodPost, "/plus/vouch", req, nil)
}

// CreateEvent posts a calendar event.
func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	var e model.Event
	err := c.do(ctx, http.MethodPost, "/calendar/events", in, &e)
	return e, err
}

// UpdateEvent edits a calendar event.
func (c *Client) UpdateEvent(ctx context.Context, id model.EventID, in model.EventInput) (model.Event, error) {
	var e model.Event
	err := c.do(ctx, http.MethodPut, "/calendar/events/"+strconv.FormatInt(int64(id), 10), in, &e)
	return e, err
}

// Suggestions reads the suggestion list through the cache.
func (c *Client) Suggestions(ctx context.Context) ([]model.Suggestion, error) {
	return querycache.Read(ctx, c.cache, querycache.NewQuery(topics.Suggestions, "all", func(ctx context.Context) ([]model.Suggestion, error) {
		var out []model.Suggestion
		err := c.do(ctx, http.MethodGet, "/plus/suggestions", nil, &out)
		return out, err
	}))
}

// Statuses reads every plus status through the cache.
func (c *Client) Statuses(ctx context.Context) ([]model.PlusStatus, error) {
	return querycache.Read(ctx, c.cache, querycache.NewQuery(topics.Statuses, "all", func(ctx context.Context) ([]model.PlusStatus, error) {
		var out []model.PlusStatus
		err := c.do(ctx, http.MethodGet, "/plus/statuses", nil, &out)
		return out, err
	}))
}

// MyStatus reads the client user's status through the cache.
func (c *Client) MyStatus(ctx context.Context) (model.PlusStatus, error) {
	key := "user:" + strconv.FormatInt(int64(c.user), 10)
	return querycache.Read(ctx, c.cache, querycache.NewQuery(topics.Statuses, key, func(ctx context.Context) (model.PlusStatus, error) {
		var out model.PlusStatus
		err := c.do(ctx, http.MethodGet, "/plus/statuses/me", nil, &out)
		return out, err
	}))
}

// Eligibility returns the tier the client user may currently vouch for.
// It matches view.EligibilityFunc.
func (c *Client) Eligibility(ctx context.Context) (model.Tier, error) {
	st, err := c.MyStatus(ctx)
	if err != nil {
		return model.TierNone, err
	}
	return st.CanVouchFor, nil
}

// Voting reads the current voting range through the cache.
func (c *Client) Voting(ctx context.Context) (voting.Range, error) {
	return querycache.Read(ctx, c.cache, querycache.NewQuery(topics.Voting, "current", func(ctx context.Context) (voting.Range, error) {
		var out voting.Range
		err := c.do(ctx, http.MethodGet, "/plus/voting", nil, &out)
		return out, err
	}))
}

// Events reads the calendar through the cache.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	return querycache.Read(ctx, c.cache, querycache.NewQuery(topics.Events, "all", func(ctx context.Context) ([]model.Event, error) {
		var out []model.Event
		err := c.do(ctx, http.MethodGet, "/calendar/events", nil, &out)
		return out, err
	}))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user.Valid() {
		req.Header.Set(api.HeaderUserID, strconv.FormatInt(int64(c.user), 10))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug(ctx, "api call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeRemoteError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}

func decodeRemoteError(resp *http.Response) error {
	re := &RemoteError{Status: resp.StatusCode}
	var body struct {
		Code    string                  `json:"code"`
		Message string                  `json:"message"`
		Fields  []validation.FieldError `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		re.Code = "http_" + strconv.Itoa(resp.StatusCode)
		re.Message = http.StatusText(resp.StatusCode)
		return re
	}
	re.Code = body.Code
	re.Message = body.Message
	re.Fields = body.Fields
	return re
}
