package service

import (
	"time"

	"github.com/okian/plushub/internal/adapters/mq/worker"
	"github.com/okian/plushub/internal/adapters/repository"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSQLitePath makes Start open a SQLite store at path when no store was
// given.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		s.sqlitePath = path
	}
}

// WithVotingWindow sets the voting predicate used to close suggestions and
// vouches.
func WithVotingWindow(w *voting.Window) Option {
	return func(s *Service) {
		if w != nil {
			s.voting = w
		}
	}
}

// WithAdminID sets the admin sentinel used by the edit policy.
func WithAdminID(id model.UserID) Option {
	return func(s *Service) {
		s.adminID = id
	}
}

// WithDescriptionLimit sets the maximum description length in characters.
func WithDescriptionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.descriptionLimit = n
		}
	}
}

// WithNotificationWorkers sets the number of audit notification workers.
func WithNotificationWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.notificationWorkers = n
		}
	}
}

// WithNotificationQueueSize sets the audit notification queue capacity.
func WithNotificationQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.notificationQueueSize = n
		}
	}
}

// WithNotificationSink replaces the default log sink for audit
// notifications.
func WithNotificationSink(sink worker.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithQueryCacheSize sets how many query results are cached.
func WithQueryCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queryCacheSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for created records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
