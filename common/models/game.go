package models

import "time"

// RosterEntry is a (player, role) pair on a game's roster
type RosterEntry struct {
	PlayerID string `bson:"playerId" json:"playerId"`
	Role     string `bson:"role" json:"role"`
}

// PlayerScore is the per-player aggregate maintained with atomic increments
type PlayerScore struct {
	Points int `bson:"points" json:"points"`
	Posted int `bson:"posted" json:"posted"`
	Won    int `bson:"won" json:"won"`
	OnTime int `bson:"onTime" json:"onTime"`
}

// ScoreDelta is one tag's contribution to a player's aggregate
type ScoreDelta struct {
	Points int
	Posted int
	Won    int
	OnTime int
}

// Game is a named competition with a roster and the three root-chain pointers.
//
// FirstRootTagID is set once and never changes. LatestRootTagID is the
// currently visible head of the root chain. PendingRootTagID holds the most
// recently posted root tag until its scheduled promotion; at most one pending
// tag exists per game at any time.
type Game struct {
	ID        string                 `bson:"_id" json:"id"`
	Name      string                 `bson:"name" json:"name"`
	CreatorID string                 `bson:"creatorId" json:"creatorId"`
	Roster    []RosterEntry          `bson:"roster" json:"roster"`
	Scores    map[string]PlayerScore `bson:"scores" json:"scores"`
	CreatedAt time.Time              `bson:"createdAt" json:"createdAt"`

	FirstRootTagID   *string `bson:"firstRootTagId,omitempty" json:"firstRootTagId,omitempty"`
	LatestRootTagID  *string `bson:"latestRootTagId,omitempty" json:"latestRootTagId,omitempty"`
	PendingRootTagID *string `bson:"pendingRootTagId,omitempty" json:"pendingRootTagId,omitempty"`
}

// HasPendingRootTag reports whether a promotion is outstanding
func (g *Game) HasPendingRootTag() bool {
	return g.PendingRootTagID != nil
}
