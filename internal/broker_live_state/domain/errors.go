package domain

import "errors"

var (
	ErrStateNotFound = errors.New("broker live state not found")
	ErrMissingFields = errors.New("user_id, broker and account_id are required")
	ErrUpsertFailed  = errors.New("broker live state upsert failed")
)

// ErrorCode is the machine-readable error returned to callers in the
// "error" field of a failed response.
type ErrorCode string

const (
	CodeInvalidJSON      ErrorCode = "INVALID_JSON"
	CodeMissingFields    ErrorCode = "MISSING_FIELDS"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	CodeUpsertFailed     ErrorCode = "UPSERT_FAILED"
)

// RequiredFields lists the identity fields every payload must carry.
var RequiredFields = []string{"user_id", "broker", "account_id"}
