package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const notifyQueueSize = 64

// Config tunes the service.
type Config struct {
	DefaultDockID string
	StaleAfter    time.Duration
	DedupeWindow  time.Duration
	NotifyTimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service holds the relay use cases. It is the only writer to the store.
type Service struct {
	store core.Store
	cfg   Config
	log   log.Logger

	mu        sync.RWMutex
	notifiers []core.Notifier
	queue     chan *dock.Command

	dedupe *dedupeCache
	group  singleflight.Group
}

func New(store core.Store, cfg Config) *Service {
	if cfg.DefaultDockID == "" {
		cfg.DefaultDockID = dock.DefaultDockID
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		log:    log.WithName("service"),
		queue:  make(chan *dock.Command, notifyQueueSize),
		dedupe: newDedupeCache(cfg.DedupeWindow),
	}
}

// AddNotifier registers n for every later change.
func (s *Service) AddNotifier(n core.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Start delivers change notifications in order until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.queue:
			s.deliver(ctx, cmd)
		}
	}
}

func (s *Service) deliver(ctx context.Context, cmd *dock.Command) {
	s.mu.RLock()
	notifiers := s.notifiers
	s.mu.RUnlock()

	for _, n := range notifiers {
		nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		if err := n.Notify(nctx, cmd); err != nil {
			s.log.Error(err, "Failed to notify dock change", "dockId", cmd.DockID, "version", cmd.Version)
		}
		cancel()
	}
}

func (s *Service) enqueue(cmd *dock.Command) {
	select {
	case s.queue <- cmd.Clone():
	default:
		s.log.Warn("Notification queue full, dropping change", "dockId", cmd.DockID, "version", cmd.Version)
	}
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DefaultDockID is the dock addressed by requests that name none.
func (s *Service) DefaultDockID() string {
	return s.cfg.DefaultDockID
}

// ResolveDockID validates id and applies the default.
func (s *Service) ResolveDockID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return s.cfg.DefaultDockID, nil
	}
	return dock.NormalizeDockID(id)
}

// View renders cmd with the configured staleness window.
func (s *Service) View(cmd *dock.Command) dock.View {
	return dock.NewView(cmd, s.cfg.Now(), s.cfg.StaleAfter)
}
