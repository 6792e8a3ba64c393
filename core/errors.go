package core

import "errors"

// Validation errors are surfaced directly to the user as transient
// notices; the offending operation is aborted without retry.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExpired         = errors.New("room expired")
	ErrEmptyRoomCode       = errors.New("room code is empty")
	ErrInvalidRoomCode     = errors.New("invalid room code")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrMessageTooLong      = errors.New("message too long")
	ErrMessageLimitReached = errors.New("room message limit reached")
	ErrInvalidVoteType     = errors.New("invalid vote type")
)
