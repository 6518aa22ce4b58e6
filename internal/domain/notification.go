package domain

import "time"

const KindModerationResult = "moderation_result"

type Notification struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Kind      string        `json:"kind"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	ListingID string        `json:"listingId"`
	Status    ListingStatus `json:"status"`
	Score     int           `json:"score"`
	Reasons   []string      `json:"reasons"`
	Color     string        `json:"color"`
	CreatedAt time.Time     `json:"createdAt"`
}
