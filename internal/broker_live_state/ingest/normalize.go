// Package ingest turns the loosely-typed payload posted by the sync process
// into a typed domain.BrokerLiveState.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
)

var ErrInvalidJSON = errors.New("request body is not valid JSON")

// Payload is the raw decoded body. Values keep their JSON types: strings,
// json.Number, bool, nil, []interface{} and map[string]interface{}.
type Payload map[string]interface{}

// Decode reads exactly one JSON value from r. Numbers are kept as
// json.Number so that the coercion rules see the original text. A valid JSON
// value that is not an object decodes to an empty Payload.
func Decode(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidJSON)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return Payload{}, nil
	}
	return Payload(obj), nil
}

// Normalize validates the identity fields and coerces everything else,
// stamping the row with now. It only fails with domain.ErrMissingFields.
func Normalize(p Payload, now time.Time) (domain.BrokerLiveState, error) {
	userID, ok1 := requiredString(p["user_id"])
	broker, ok2 := requiredString(p["broker"])
	accountID, ok3 := requiredString(p["account_id"])
	if !ok1 || !ok2 || !ok3 {
		return domain.BrokerLiveState{}, domain.ErrMissingFields
	}

	state := domain.BrokerLiveState{
		UserID:    userID,
		Broker:    broker,
		AccountID: accountID,
		Status:    status(p["status"]),
		Metrics:   metrics(p["metrics"]),
		Exposure:  object(p["exposure"]),
		Meta:      object(p["meta"]),
	}
	state.Touch(now)

	return state, nil
}

func requiredString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func status(v interface{}) domain.Status {
	s, ok := v.(string)
	if !ok {
		return domain.DefaultStatus
	}
	if st, ok := domain.ParseStatus(strings.TrimSpace(s)); ok {
		return st
	}
	return domain.DefaultStatus
}

func metrics(v interface{}) domain.Metrics {
	m, ok := v.(map[string]interface{})
	if !ok {
		return domain.Metrics{}
	}
	return domain.Metrics{
		Equity:             Float(m["equity"]),
		Balance:            Float(m["balance"]),
		FloatingPnL:        Float(m["floating_pnl"]),
		OpenPositionsCount: Int(m["open_positions_count"]),
		MarginUsed:         Float(m["margin_used"]),
		FreeMargin:         Float(m["free_margin"]),
	}
}

// Float accepts a finite JSON number or a string holding one. Anything else,
// including NaN and ±Inf, yields nil.
func Float(v interface{}) *float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Int is Float truncated toward zero. Values outside the int64 range are nil.
func Int(v interface{}) *int64 {
	f := Float(v)
	if f == nil {
		return nil
	}
	t := math.Trunc(*f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return nil
	}
	n := int64(t)
	return &n
}

// object keeps v only if it is a JSON object; arrays, null and scalars
// become an empty object.
func object(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
