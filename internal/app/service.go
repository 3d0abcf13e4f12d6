// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/plushub/internal/adapters/mq/worker"
	"github.com/okian/plushub/internal/adapters/notify"
	"github.com/okian/plushub/internal/adapters/repository"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/policy"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultAdminID               model.UserID = 8
	DefaultNotificationWorkers                = 1
	DefaultNotificationQueueSize              = 1024
	DefaultQueryCacheSize                     = 256
	stopTimeout                               = 5 * time.Second
)

// Service implements the API dependencies for plus suggestions, vouches and
// calendar events.
type Service struct {
	mu sync.RWMutex
	// writeMu serializes mutations so rule checks and writes see one state.
	writeMu sync.Mutex

	// Core components
	store      repository.Store
	cache      *querycache.Cache
	validator  *validation.Validator
	policy     policy.Policy
	voting     *voting.Window
	dispatcher *notify.Dispatcher
	sink       worker.Sink

	// Configuration
	sqlitePath            string
	adminID               model.UserID
	descriptionLimit      int
	notificationWorkers   int
	notificationQueueSize int
	queryCacheSize        int
	now                   func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		adminID:               DefaultAdminID,
		descriptionLimit:      validation.DefaultDescriptionLimit,
		notificationWorkers:   DefaultNotificationWorkers,
		notificationQueueSize: DefaultNotificationQueueSize,
		queryCacheSize:        DefaultQueryCacheSize,
		now:                   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.voting == nil {
		s.voting = voting.New()
	}
	s.policy = policy.New(s.adminID)
	s.validator = validation.New(validation.WithDescriptionLimit(s.descriptionLimit))
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting plushub service...")

	if s.store == nil {
		if s.sqlitePath != "" {
			store, err := repository.OpenSQLite(ctx, s.sqlitePath, repository.WithLogger(s.logger))
			if err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using memory store")
		}
	}

	s.cache = querycache.New(querycache.WithMaxEntries(s.queryCacheSize))

	if s.sink == nil {
		s.sink = notify.NewLogSink(s.logger.Named("audit"))
	}
	s.dispatcher = notify.NewDispatcher(s.sink,
		notify.WithCapacity(s.notificationQueueSize),
		notify.WithWorkers(s.notificationWorkers),
	)
	// Workers outlive the start context; Stop drains and ends them.
	s.dispatcher.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "plushub service started",
		logger.Int("notificationWorkers", s.notificationWorkers),
		logger.Int("notificationQueueSize", s.notificationQueueSize),
		logger.Int("queryCacheSize", s.queryCacheSize),
		logger.Int("descriptionLimit", s.descriptionLimit),
	)

	return nil
}

// Stop gracefully shuts down the service. Queued notifications are
// delivered before the store is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping plushub service...")

	if err := s.dispatcher.Close(ctx); err != nil {
		s.logger.Warn(ctx, "notification drain incomplete", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "failed to close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "plushub service stopped")
}

// components returns the running components or ErrNotStarted.
func (s *Service) components() (repository.Store, *querycache.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.cache, nil
}

// audit queues a notification describing a completed mutation.
func (s *Service) audit(ctx context.Context, source string, actor model.UserID, msg string) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		return
	}
	n := model.NewNotification(model.NotificationSuccess, source, msg)
	n.UserID = actor
	if err := d.Notify(ctx, n); err != nil {
		s.logger.Warn(ctx, "audit notification dropped", logger.String("source", source), logger.Error(err))
	}
}

// Limit returns the description limit in characters.
func (s *Service) Limit() int { return s.validator.Limit() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":               s.started,
		"adminId":               int64(s.adminID),
		"descriptionLimit":      s.descriptionLimit,
		"notificationWorkers":   s.notificationWorkers,
		"notificationQueueSize": s.notificationQueueSize,
		"queryCacheSize":        s.queryCacheSize,
		"votingHappening":       s.voting.IsHappening(),
	}

	if s.started {
		pending := s.dispatcher.Pending()
		entries := s.cache.Size()

		stats["pendingNotifications"] = pending
		stats["cacheEntries"] = entries

		metrics.UpdateQueueSize(pending)
		metrics.UpdateCacheEntries(int(entries))
	}

	return stats
}
