package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
)

// Schema is the DDL for the broker_live_state table.
//
//go:embed schema.sql
var Schema string

// LiveStateRepository handles PostgreSQL operations for broker live state.
type LiveStateRepository struct {
	db *sql.DB
}

func NewLiveStateRepository(db *sql.DB) *LiveStateRepository {
	return &LiveStateRepository{db: db}
}

// Upsert inserts the row or, when the (user_id, broker, account_id) triple
// already exists, overwrites every other column with the new values.
func (r *LiveStateRepository) Upsert(ctx context.Context, s *domain.BrokerLiveState) error {
	const q = `
insert into broker_live_state (
	user_id, broker, account_id, status,
	equity, balance, floating_pnl, open_positions_count, margin_used, free_margin,
	exposure, meta, last_sync_at, updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14)
on conflict (user_id, broker, account_id) do update set
	status = excluded.status,
	equity = excluded.equity,
	balance = excluded.balance,
	floating_pnl = excluded.floating_pnl,
	open_positions_count = excluded.open_positions_count,
	margin_used = excluded.margin_used,
	free_margin = excluded.free_margin,
	exposure = excluded.exposure,
	meta = excluded.meta,
	last_sync_at = excluded.last_sync_at,
	updated_at = excluded.updated_at;
`
	exposureJSON, err := marshalObject(s.Exposure)
	if err != nil {
		return fmt.Errorf("marshal exposure: %w", err)
	}
	metaJSON, err := marshalObject(s.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q,
		s.UserID,
		s.Broker,
		s.AccountID,
		string(s.Status),
		nullFloat(s.Equity),
		nullFloat(s.Balance),
		nullFloat(s.FloatingPnL),
		nullInt(s.OpenPositionsCount),
		nullFloat(s.MarginUsed),
		nullFloat(s.FreeMargin),
		exposureJSON,
		metaJSON,
		s.LastSyncAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert broker live state: %w", err)
	}

	return nil
}

// Get loads the row for key.
func (r *LiveStateRepository) Get(ctx context.Context, key domain.Key) (*domain.BrokerLiveState, error) {
	const q = `
select user_id, broker, account_id, status,
       equity, balance, floating_pnl, open_positions_count, margin_used, free_margin,
       exposure, meta, last_sync_at, updated_at
from broker_live_state
where user_id = $1 and broker = $2 and account_id = $3;
`
	var (
		s                            domain.BrokerLiveState
		status                       string
		equity, balance, floatingPnL sql.NullFloat64
		marginUsed, freeMargin       sql.NullFloat64
		openPositions                sql.NullInt64
		exposureJSON, metaJSON       []byte
	)

	err := r.db.QueryRowContext(ctx, q, key.UserID, key.Broker, key.AccountID).Scan(
		&s.UserID,
		&s.Broker,
		&s.AccountID,
		&status,
		&equity,
		&balance,
		&floatingPnL,
		&openPositions,
		&marginUsed,
		&freeMargin,
		&exposureJSON,
		&metaJSON,
		&s.LastSyncAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broker live state: %w", err)
	}

	s.Status = domain.Status(status)
	s.Equity = floatPtr(equity)
	s.Balance = floatPtr(balance)
	s.FloatingPnL = floatPtr(floatingPnL)
	s.OpenPositionsCount = intPtr(openPositions)
	s.MarginUsed = floatPtr(marginUsed)
	s.FreeMargin = floatPtr(freeMargin)
	s.Exposure = unmarshalObject(exposureJSON)
	s.Meta = unmarshalObject(metaJSON)

	return &s, nil
}

func marshalObject(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalObject(b []byte) map[string]interface{} {
	out := make(map[string]interface{})
	if len(b) == 0 {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return make(map[string]interface{})
	}
	return out
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
