package coordinator

import "errors"

// RejectError is an authorization failure. Its message is sent verbatim to
// the offending sender and never to anyone else.
type RejectError struct {
	Message string
}

func (e *RejectError) Error() string { return e.Message }

var (
	ErrNotHost         = &RejectError{Message: "Only host can lock/unlock"}
	ErrAlreadyUnlocked = &RejectError{Message: "Note is already unlocked"}
	ErrLocked          = &RejectError{Message: "Note is locked"}
)

// ErrNotMember is returned when the sender is no longer bound to the room,
// e.g. a stale connection after the same user re-joined elsewhere.
var ErrNotMember = errors.New("not a room member")

// IsReject reports whether err must be delivered to the sender.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
