package game

import "errors"

// Errors returned by the match state machine for illegal calls. None of them
// leave the room mutated; the session layer turns them into rejection
// notices for the caller only.
var (
	ErrRoomFull           = errors.New("room already has two seated players")
	ErrNotInRoom          = errors.New("player is not seated in this room")
	ErrPreconditionFailed = errors.New("both players must be seated and ready")
	ErrWrongState         = errors.New("operation not valid in current match state")
	ErrAlreadyClaimed     = errors.New("another player already claimed this round")
	ErrNotClaimant        = errors.New("only the claiming player may submit")
	ErrGameOver           = errors.New("match is already over")
)
