package handle

import "errors"

var (
	// ErrReleased is returned when an operation needs a live owner.
	ErrReleased = errors.New("handle: already released")

	// ErrNotUnique is returned when a domain conversion is attempted while
	// other owners of the group are still live.
	ErrNotUnique = errors.New("handle: group has other live owners")

	// ErrPayloadType is returned when the environment hands back a snapshot
	// payload of a different type than the snapshot holds.
	ErrPayloadType = errors.New("handle: snapshot payload type mismatch")
)
