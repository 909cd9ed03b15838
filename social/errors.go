package social

import (
	"errors"
	"strings"
)

// Sentinel errors for the relationship lifecycle. Anything else returned by
// the Service is a wrapped store error and should be treated as such.
var (
	ErrInvalidRequest     = errors.New("social: invalid request")
	ErrAlreadyFriends     = errors.New("social: already friends")
	ErrDuplicateRequest   = errors.New("social: request already pending")
	ErrRequestNotFound    = errors.New("social: request not found")
	ErrAllocationConflict = errors.New("social: thread id allocation conflict")
)

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
