package models

import "time"

// PendingTagView is the placeholder exposed for a root tag that exists but is
// not yet visible as the game's latest round. Its presence alone signals
// "something is pending"; the full tag is withheld until promotion.
type PendingTagView struct {
	ID         string    `json:"id"`
	PostedAt   time.Time `json:"postedAt"`
	PromotesAt time.Time `json:"promotesAt"`
}

// GameView is the caller-facing read model of a game. The full-tag vs
// pending-placeholder distinction is resolved here, once, at the API
// boundary: latest and first root tags are full tags, the pending root tag
// is only ever a placeholder.
type GameView struct {
	Game
	FirstRootTag   *Tag            `json:"firstRootTag,omitempty"`
	LatestRootTag  *Tag            `json:"latestRootTag,omitempty"`
	PendingRootTag *PendingTagView `json:"pendingRootTag,omitempty"`
}
