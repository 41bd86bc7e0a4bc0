package models

import "time"

// Tag is the atomic posted unit. A tag is either a root tag (starts a daily
// round, linked into the game's root chain via PreviousRootTagID/NextRootTagID)
// or a subtag (a reply inside a root tag's subchain, linked via
// ParentTagID/NextTagID and owned through RootTagID). The two roles are
// exclusive.
type Tag struct {
	ID        string    `bson:"_id" json:"id"`
	GameID    string    `bson:"gameId" json:"gameId"`
	CreatorID string    `bson:"creatorId" json:"creatorId"`
	IsRoot    bool      `bson:"isRoot" json:"isRoot"`
	Content   string    `bson:"content" json:"content"`
	PostedAt  time.Time `bson:"postedAt" json:"postedAt"`

	// Subchain pointers (subtags only)
	ParentTagID *string `bson:"parentTagId,omitempty" json:"parentTagId,omitempty"`
	NextTagID   *string `bson:"nextTagId,omitempty" json:"nextTagId,omitempty"`
	RootTagID   *string `bson:"rootTagId,omitempty" json:"rootTagId,omitempty"`

	// Root chain pointers. Root tags own these; subtags of an open chain carry
	// copies so readers can reach the same root-chain neighbors as their root.
	PreviousRootTagID *string `bson:"previousRootTagId,omitempty" json:"previousRootTagId,omitempty"`
	NextRootTagID     *string `bson:"nextRootTagId,omitempty" json:"nextRootTagId,omitempty"`

	// Stats computed at creation time
	PointValue   int  `bson:"pointValue" json:"pointValue"`
	NewTag       bool `bson:"newTag" json:"newTag"`
	PostedOnTime bool `bson:"postedOnTime" json:"postedOnTime"`
	WonTag       bool `bson:"wonTag" json:"wonTag"`
}

// RootChainID returns the ID of the root tag owning this tag's subchain:
// the tag itself for root tags, RootTagID otherwise.
func (t *Tag) RootChainID() string {
	if t.IsRoot || t.RootTagID == nil {
		return t.ID
	}
	return *t.RootTagID
}

// IsChainTail reports whether this tag is currently the last link of its
// subchain.
func (t *Tag) IsChainTail() bool {
	return t.NextTagID == nil
}
