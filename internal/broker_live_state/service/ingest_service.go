package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradejournal/broker-live-sync/internal/api/http/middleware"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/ingest"
)

// Store persists one normalized row.
type Store interface {
	Upsert(ctx context.Context, s *domain.BrokerLiveState) error
}

// Publisher announces a row after it has been written.
type Publisher interface {
	Publish(ctx context.Context, s *domain.BrokerLiveState) error
}

// IngestService turns a decoded payload into a stored live-state row.
type IngestService struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewIngestService(store Store, publisher Publisher, logger *slog.Logger) *IngestService {
	return &IngestService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used to stamp rows.
func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	s.now = now
	return s
}

// Ingest normalizes p and upserts it. It returns domain.ErrMissingFields for
// payloads without a usable identity and wraps domain.ErrUpsertFailed when
// the store rejects the write. Publishing is best-effort.
func (s *IngestService) Ingest(ctx context.Context, p ingest.Payload) (*domain.BrokerLiveState, error) {
	state, err := ingest.Normalize(p, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, &state); err != nil {
		s.logger.ErrorContext(ctx, "broker live state upsert failed",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", state.UserID,
			"broker", state.Broker,
			"account_id", state.AccountID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpsertFailed, err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, &state); err != nil {
			s.logger.WarnContext(ctx, "broker live state publish failed",
				"request_id", middleware.GetRequestID(ctx),
				"user_id", state.UserID,
				"broker", state.Broker,
				"account_id", state.AccountID,
				"error", err,
			)
		}
	}

	return &state, nil
}
