package msg

import (
	"errors"
	"fmt"

	"github.com/roach88/kobzar/internal/ident"
)

// Code categorizes messaging failures.
type Code string

const (
	// CodePending means the mailbox slot for this sender and interface is
	// occupied.
	CodePending Code = "PENDING"
	// CodeDied means the peer thread is dead.
	CodeDied Code = "DIED"
	// CodeConnectionLost means the peer cannot be reached.
	CodeConnectionLost Code = "CONNECTION_LOST"
	// CodeUnsupported means the interface does not match the endpoint or the
	// operation is not available between these peers.
	CodeUnsupported Code = "UNSUPPORTED"
	// CodeNotPermitted means the peer's publicity refuses the caller.
	CodeNotPermitted Code = "NOT_PERMITTED"
)

// Error is a messaging failure. errors.Is matches on Code alone, so
// errors.Is(err, ErrPending) holds for any pending error.
type Error struct {
	Code      Code
	Peer      ident.Uid
	Interface ident.Interface
	Message   string
}

var (
	ErrPending        = &Error{Code: CodePending}
	ErrDied           = &Error{Code: CodeDied}
	ErrConnectionLost = &Error{Code: CodeConnectionLost}
	ErrUnsupported    = &Error{Code: CodeUnsupported}
	ErrNotPermitted   = &Error{Code: CodeNotPermitted}
)

// NewError builds an Error for a peer and interface.
func NewError(code Code, peer ident.Uid, iface ident.Interface, msg string) *Error {
	return &Error{Code: code, Peer: peer, Interface: iface, Message: msg}
}

func (e *Error) Error() string {
	var s string
	if e.Message != "" {
		s = fmt.Sprintf("%s: %s", e.Code, e.Message)
	} else {
		s = string(e.Code)
	}
	if !e.Peer.IsZero() {
		s += " (peer=" + e.Peer.Short()
		if !e.Interface.IsZero() {
			s += ", interface=" + e.Interface.String()
		}
		s += ")"
	}
	return s
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsPending reports whether err is a PENDING messaging error.
func IsPending(err error) bool { return errors.Is(err, ErrPending) }

// IsDied reports whether err is a DIED messaging error.
func IsDied(err error) bool { return errors.Is(err, ErrDied) }

// IsConnectionLost reports whether err is a CONNECTION_LOST messaging error.
func IsConnectionLost(err error) bool { return errors.Is(err, ErrConnectionLost) }

// IsUnsupported reports whether err is an UNSUPPORTED messaging error.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// IsNotPermitted reports whether err is a NOT_PERMITTED messaging error.
func IsNotPermitted(err error) bool { return errors.Is(err, ErrNotPermitted) }

// IsLiveness reports whether err means the peer or the link is gone.
func IsLiveness(err error) bool { return IsDied(err) || IsConnectionLost(err) }
