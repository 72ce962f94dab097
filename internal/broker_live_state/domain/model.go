package domain

import "time"

// BrokerLiveState is the latest telemetry snapshot for one broker account.
// (UserID, Broker, AccountID) is unique in the store.
type BrokerLiveState struct {
	UserID    string `json:"user_id"`
	Broker    string `json:"broker"`
	AccountID string `json:"account_id"`
	Status    Status `json:"status"`

	Metrics

	Exposure map[string]interface{} `json:"exposure"`
	Meta     map[string]interface{} `json:"meta"`

	LastSyncAt time.Time `json:"last_sync_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Metrics holds the nullable numeric columns. nil means "not reported".
type Metrics struct {
	Equity             *float64 `json:"equity"`
	Balance            *float64 `json:"balance"`
	FloatingPnL        *float64 `json:"floating_pnl"`
	OpenPositionsCount *int64   `json:"open_positions_count"`
	MarginUsed         *float64 `json:"margin_used"`
	FreeMargin         *float64 `json:"free_margin"`
}

// Key identifies a row.
type Key struct {
	UserID    string
	Broker    string
	AccountID string
}

func (s *BrokerLiveState) Key() Key {
	return Key{UserID: s.UserID, Broker: s.Broker, AccountID: s.AccountID}
}

// Touch stamps both sync timestamps with the same instant.
func (s *BrokerLiveState) Touch(now time.Time) {
	now = now.UTC()
	s.LastSyncAt = now
	s.UpdatedAt = now
}

type Status string

const (
	StatusLive    Status = "live"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
	StatusStale   Status = "stale"
)

// DefaultStatus is used when the caller omits status or sends an unknown one.
const DefaultStatus = StatusSyncing

// ParseStatus reports whether s is one of the known statuses.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusLive, StatusSyncing, StatusError, StatusStale:
		return st, true
	}
	return "", false
}
