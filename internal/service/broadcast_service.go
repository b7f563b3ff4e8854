package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
)

type destinationLister interface {
	ListDestinations(ctx context.Context) ([]string, error)
}

// Notifier delivers a plain text message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type deliveryObserver interface {
	ObserveDelivery(ok bool)
}

// BroadcastService fans a message out to every known chat destination.
type BroadcastService struct {
	store    destinationLister
	notifier Notifier
	observer deliveryObserver
	interval time.Duration
	logger   *zap.Logger
}

// NewBroadcastService constructs a BroadcastService. interval is the pause
// between two deliveries; zero disables pacing.
func NewBroadcastService(store destinationLister, notifier Notifier, observer deliveryObserver, interval time.Duration, logger *zap.Logger) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastService{store: store, notifier: notifier, observer: observer, interval: interval, logger: logger}
}

// Send delivers text to each destination once, in sheet order. Failed
// deliveries are counted, never retried, and never stop the run. Destinations
// that are not chat ids count as failures. When ctx is cancelled the run stops
// and every destination not yet attempted counts as failed.
func (s *BroadcastService) Send(ctx context.Context, text string) (models.BroadcastResult, error) {
	var result models.BroadcastResult
	if strings.TrimSpace(text) == "" {
		return result, appErrors.Clone(appErrors.ErrValidation, "broadcast text is empty")
	}

	destinations, err := s.store.ListDestinations(ctx)
	if err != nil {
		return result, err
	}

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("broadcast_id", runID))
	logger.Info("broadcast started", zap.Int("destinations", len(destinations)))

	for i, raw := range destinations {
		if i > 0 {
			s.pause(ctx)
		}
		if ctx.Err() != nil {
			remaining := len(destinations) - i
			logger.Warn("broadcast interrupted", zap.Int("unattempted", remaining), zap.Error(ctx.Err()))
			for n := 0; n < remaining; n++ {
				s.record(&result, false)
			}
			break
		}
		chatID, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			logger.Warn("skip malformed chat destination", zap.String("destination", raw))
			s.record(&result, false)
			continue
		}
		if err := s.notifier.Notify(ctx, chatID, text); err != nil {
			logger.Error("broadcast delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))
			s.record(&result, false)
			continue
		}
		s.record(&result, true)
	}

	logger.Info("broadcast finished", zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return result, nil
}

func (s *BroadcastService) record(result *models.BroadcastResult, ok bool) {
	if ok {
		result.Succeeded++
	} else {
		result.Failed++
	}
	if s.observer != nil {
		s.observer.ObserveDelivery(ok)
	}
}

func (s *BroadcastService) pause(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
