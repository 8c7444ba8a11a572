package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validation reason codes returned to the client verbatim.
const (
	CodeInvalidMode         = "INVALID_MODE"
	CodeInvalidQuestionCnt  = "INVALID_QUESTION_CNT"
	CodeInvalidTotalTime    = "INVALID_TOTAL_TIME"
	CodeItemsRequired       = "ITEMS_REQUIRED"
	CodeItemsLengthMismatch = "ITEMS_LENGTH_MISMATCH"
	CodeInvalidOrderNo      = "INVALID_ORDER_NO"
	CodeInvalidSelectedIdx  = "INVALID_SELECTED_IDX"
	CodeInvalidCorrectIdx   = "INVALID_CORRECT_IDX"
)

var (
	// ErrAttemptNotFound covers both a nonexistent attempt and one owned by
	// someone else; the two cases are deliberately indistinguishable.
	ErrAttemptNotFound = errors.New("attempt not found")
)

// ValidationError rejects a malformed submission before any write happens.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Code
}

// IntegrityError reports a computed invariant that unexpectedly failed.
// It is a defensive assertion, never silently corrected.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return "integrity violation: " + e.Detail
}

// PersistenceError wraps a store failure after the transaction rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ParseID is the single coercion point for numeric identities arriving as
// text (path segments, large bigserials rendered as strings).
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed id %q", raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("non-positive id %d", id)
	}
	return id, nil
}
