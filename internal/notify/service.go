package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// Delivery outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Service stores dispatch notifications and fans them out to the crew
type Service struct {
	store       Store
	dedup       *Deduper
	senders     []Sender
	broadcaster Broadcaster
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *logger.Logger
	mu          sync.RWMutex
}

// NewService creates a notification service. dedup is required; the store
// holds every accepted notification.
func NewService(store Store, dedup *Deduper, clock clockwork.Clock, metrics *observability.Metrics, log *logger.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:   store,
		dedup:   dedup,
		clock:   clock,
		metrics: metrics,
		logger:  log.Named("notify"),
	}
}

// AddSender registers an external delivery channel
func (s *Service) AddSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders = append(s.senders, sender)
}

// SetBroadcaster sets where stored notifications are pushed live
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Send validates, deduplicates and stores a notification, then delivers it
// over every channel. Channel failures are reported in the delivery and
// never undo the stored notification.
func (s *Service) Send(ctx context.Context, in Notification) (*Delivery, error) {
	n := in
	n.Normalize()
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := s.dedup.Check(&n); err != nil {
		s.metrics.DedupHits.Inc()
		s.logger.Debug("Suppressed duplicate notification",
			logger.String("kind", n.Kind),
			logger.String("title", n.Title))
		return nil, err
	}

	n.ID = 0
	n.Read = false
	n.CreatedAt = s.clock.Now().UTC()

	id, err := s.store.SaveNotification(ctx, &n)
	if err != nil {
		// Allow a retry of the same message
		s.dedup.Forget(&n)
		s.record(ChannelStore, err)
		return nil, fmt.Errorf("store notification: %w", err)
	}
	n.ID = id
	s.record(ChannelStore, nil)

	delivery := &Delivery{
		Notification: &n,
		Channels:     map[string]string{ChannelStore: OutcomeSuccess},
	}

	s.mu.RLock()
	senders := append([]Sender(nil), s.senders...)
	broadcaster := s.broadcaster
	s.mu.RUnlock()

	outcomes := make([]string, len(senders))
	g, gctx := errgroup.WithContext(ctx)
	for i, sender := range senders {
		g.Go(func() error {
			err := sender.Send(gctx, &n)
			outcomes[i] = s.record(sender.Name(), err)
			if err != nil && !errors.Is(err, ErrSkipped) {
				s.logger.Warn("Notification delivery failed",
					logger.String("channel", sender.Name()),
					logger.Int64("id", n.ID),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, sender := range senders {
		delivery.Channels[sender.Name()] = outcomes[i]
	}

	if broadcaster != nil {
		broadcaster.BroadcastNotification(&n)
		delivery.Channels[ChannelWebsocket] = s.record(ChannelWebsocket, nil)
	}

	s.logger.Info("Notification sent",
		logger.Int64("id", n.ID),
		logger.String("kind", n.Kind),
		logger.String("callsign", n.Callsign),
		logger.Any("channels", delivery.Channels))

	return delivery, nil
}

// List returns stored notifications, newest first
func (s *Service) List(ctx context.Context, limit int, unreadOnly bool) ([]*Notification, error) {
	return s.store.ListNotifications(ctx, limit, unreadOnly)
}

// MarkRead flags a stored notification as read
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return s.store.MarkNotificationRead(ctx, id)
}

// record counts a delivery and returns its outcome label
func (s *Service) record(channel string, err error) string {
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrSkipped):
		outcome = OutcomeSkipped
	case err != nil:
		outcome = OutcomeError
	}
	s.metrics.Notifications.WithLabelValues(channel, outcome).Inc()
	return outcome
}
