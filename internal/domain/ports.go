package domain

import "context"

type ListingStore interface {
	GetListing(ctx context.Context, id string) (Listing, error)
	// UpdateModeration writes status and record in one atomic update.
	UpdateModeration(ctx context.Context, id string, status ListingStatus, rec ModerationRecord) error
	ListPending(ctx context.Context, limit int) ([]Listing, error)
	// Stats counts listings by outcome. AutoApproved means live with an
	// "approved" recommendation; AvgScore covers listings with a record.
	Stats(ctx context.Context) (ModerationStats, error)
}

// VisionClient returns the raw JSON object the model produced for one image.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, imageRef string) (map[string]any, error)
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
