package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradejournal/broker-live-sync/internal/api/http/middleware"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/ingest"
)

// memStore mimics the table: one row per key, later writes replace earlier ones.
type memStore struct {
	mu   sync.Mutex
	rows map[domain.Key]domain.BrokerLiveState
	err  error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[domain.Key]domain.BrokerLiveState)}
}

func (m *memStore) Upsert(_ context.Context, s *domain.BrokerLiveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[s.Key()] = *s
	return nil
}

type recordingPublisher struct {
	events []domain.BrokerLiveState
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, s *domain.BrokerLiveState) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *s)
	return nil
}

func payload(t *testing.T, body string) ingest.Payload {
	t.Helper()
	p, err := ingest.Decode(strings.NewReader(body))
	require.NoError(t, err)
	return p
}

func TestIngestService_Ingest(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewIngestService(store, pub, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).
		WithClock(func() time.Time { return now })

	state, err := svc.Ingest(context.Background(), payload(t, `{"user_id":"u1","broker":"mt5","account_id":"acc1","status":"live"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLive, state.Status)
	assert.Equal(t, now, state.LastSyncAt)

	require.Len(t, store.rows, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "u1", pub.events[0].UserID)
}

func TestIngestService_SecondWriteReplacesFirst(t *testing.T) {
	store := newMemStore()
	clock := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	svc := NewIngestService(store, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).
		WithClock(func() time.Time { return clock })

	_, err := svc.Ingest(context.Background(), payload(t, `{"user_id":"u1","broker":"mt5","account_id":"acc1","status":"live","metrics":{"equity":100},"meta":{"v":1}}`))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	_, err = svc.Ingest(context.Background(), payload(t, `{"user_id":"u1","broker":"mt5","account_id":"acc1","metrics":{"balance":"50"}}`))
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	row := store.rows[domain.Key{UserID: "u1", Broker: "mt5", AccountID: "acc1"}]
	assert.Equal(t, domain.StatusSyncing, row.Status)
	assert.Nil(t, row.Equity, "fields are replaced, not merged")
	assert.Equal(t, 50.0, *row.Balance)
	assert.Equal(t, map[string]interface{}{}, row.Meta)
	assert.Equal(t, clock, row.LastSyncAt)
	assert.Equal(t, clock, row.UpdatedAt)
}

func TestIngestService_MissingFields(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	var logs bytes.Buffer
	svc := NewIngestService(store, pub, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := svc.Ingest(context.Background(), payload(t, `{"user_id":"u1","broker":"  "}`))
	assert.ErrorIs(t, err, domain.ErrMissingFields)
	assert.Empty(t, store.rows)
	assert.Empty(t, pub.events)
	assert.Empty(t, logs.String(), "validation failures are not logged")
}

func TestIngestService_UpsertFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("duplicate key value violates unique constraint")
	pub := &recordingPublisher{}
	var logs bytes.Buffer
	svc := NewIngestService(store, pub, slog.New(slog.NewTextHandler(&logs, nil)))

	ctx := middleware.WithRequestID(context.Background(), "req-7")
	_, err := svc.Ingest(ctx, payload(t, `{"user_id":"u1","broker":"mt5","account_id":"acc1"}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpsertFailed)
	assert.Empty(t, pub.events)

	out := logs.String()
	assert.Contains(t, out, "broker live state upsert failed")
	assert.Contains(t, out, "request_id=req-7")
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "broker=mt5")
	assert.Contains(t, out, "account_id=acc1")
}

func TestIngestService_PublishFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{err: errors.New("redis: connection refused")}
	var logs bytes.Buffer
	svc := NewIngestService(store, pub, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := svc.Ingest(context.Background(), payload(t, `{"user_id":"u1","broker":"mt5","account_id":"acc1"}`))
	require.NoError(t, err)
	assert.Len(t, store.rows, 1)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "broker live state publish failed")
}
