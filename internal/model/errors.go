package model

import "errors"

// Common errors used across the application
var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")

	// Presence errors
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotOwner            = errors.New("participant is not the room owner")
	ErrNoActiveRoom        = errors.New("connection has no active room")
	ErrUnreachable         = errors.New("no connected participant with that name")

	// Ledger errors
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrInsufficientScore = errors.New("insufficient score")
	ErrInvalidAmount     = errors.New("transfer amount must be positive")

	// Protocol errors
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
)

// IsUserFacing reports whether an error should be surfaced to the acting
// connection as a room_error. All other errors are silent no-ops.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrInsufficientScore)
}
