package models

import "errors"

// Domain error taxonomy. Callers classify with errors.Is; the HTTP layer maps
// each class to a status code exactly once.
var (
	// ErrNotFound: a referenced entity is absent. Client error, never retried.
	ErrNotFound = errors.New("not found")

	// ErrPendingTagConflict: a root tag was posted while another is still
	// awaiting promotion. Only one pending root tag is permitted per game.
	ErrPendingTagConflict = errors.New("a root tag is already pending promotion")

	// ErrChainTailMoved: the resolved chain tail gained a successor before the
	// patch landed. The caller should re-resolve and retry once.
	ErrChainTailMoved = errors.New("chain tail moved")

	// ErrInvalidChainState: structural corruption (zero or multiple tails).
	// Fatal, requires operator intervention, never retried.
	ErrInvalidChainState = errors.New("invalid chain state")

	// ErrInvalidPromotion: a promotion-state transition that is not allowed,
	// e.g. marking a game's very first root tag as pending.
	ErrInvalidPromotion = errors.New("invalid promotion")
)
