package models

import "time"

// PromotionJob is a durable instruction to promote a game's pending root tag
// at TriggerAt. One job exists per pending tag; re-delivery is safe because
// promotion is idempotent.
type PromotionJob struct {
	GameID       string    `json:"gameId"`
	PendingTagID string    `json:"pendingTagId"`
	TriggerAt    time.Time `json:"triggerAt"`
	Attempts     int       `json:"attempts"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}
