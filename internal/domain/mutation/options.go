package mutation

import (
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/pkg/logger"
)

// Option applies a configuration option to a Form.
type Option func(*settings)

type settings struct {
	notifier    Notifier
	invalidator querycache.Invalidator
	logger      logger.Logger
}

// WithNotifier sets where success and error notifications go.
func WithNotifier(n Notifier) Option {
	return func(s *settings) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithInvalidator sets the cache invalidated after a successful mutation.
func WithInvalidator(inv querycache.Invalidator) Option {
	return func(s *settings) {
		if inv != nil {
			s.invalidator = inv
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
