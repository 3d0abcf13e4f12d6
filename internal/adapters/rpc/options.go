package rpc

import (
	"net/http"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithUser sets the user the client acts as.
func WithUser(id model.UserID) Option {
	return func(cl *Client) {
		cl.user = id
	}
}

// WithCache sets the query cache shared with the components that
// invalidate it.
func WithCache(c *querycache.Cache) Option {
	return func(cl *Client) {
		if c != nil {
			cl.cache = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}
