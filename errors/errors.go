package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrSessionClosed    = fmt.Errorf("session is closed")
	ErrUnknownMessage   = fmt.Errorf("unknown message")
	ErrUnknownPending   = fmt.Errorf("unknown pending message")
	ErrNotFailed        = fmt.Errorf("pending message is not in failed state")
	ErrInvalidPayload   = fmt.Errorf("invalid event payload")
	ErrFeedClosed       = fmt.Errorf("realtime feed is closed")
	ErrMissingUserClaim = fmt.Errorf("access token carries no user id claim")
)
