package domain

import "errors"

// Store failures. Drivers map their native errors onto these so every layer
// above the blob store can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrVersionConflict  = errors.New("version conflict")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransient        = errors.New("transient failure")
	ErrOperationFailed  = errors.New("operation failed")
	ErrCorruptDocument  = errors.New("corrupt document")
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrMemberNotFound    = errors.New("member not found")
	ErrAlreadyFriends    = errors.New("already friends")
	ErrRequestNotFound   = errors.New("request not found")
	ErrRequestResolved   = errors.New("request already resolved")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTryAgain          = errors.New("message may not have been sent, please retry")
)

// IsRetryable reports whether err is a failure the retry policy should try
// again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
