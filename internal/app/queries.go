package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"rental_moderation/internal/domain"
)

const (
	defaultPendingLimit = 50
	// MaxPendingLimit is the largest page the pending queue serves.
	MaxPendingLimit = 200
)

const (
	pendingKey = "pending"
	statsKey   = "stats"
)

type QueryService struct {
	store    domain.ListingStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(s domain.ListingStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: s, cache: c, cacheTTL: ttl}
}

func listingKey(id string) string { return fmt.Sprintf("listing:%s", id) }

func (s *QueryService) GetListing(ctx context.Context, id string) (domain.ListingView, error) {
	key := listingKey(id)
	var lv domain.ListingView
	if ok, _ := s.cache.Get(ctx, key, &lv); ok {
		return lv, nil
	}
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return domain.ListingView{}, err
	}
	lv = l.View()
	_ = s.cache.Set(ctx, key, lv, int(s.cacheTTL.Seconds()))
	return lv, nil
}

// ListPending serves every page size from one cached page of MaxPendingLimit
// items, so a review only has one key to drop.
func (s *QueryService) ListPending(ctx context.Context, limit int) (domain.ListingsPage, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > MaxPendingLimit {
		limit = MaxPendingLimit
	}

	var page domain.ListingsPage
	if ok, _ := s.cache.Get(ctx, pendingKey, &page); !ok {
		ls, err := s.store.ListPending(ctx, MaxPendingLimit)
		if err != nil {
			return domain.ListingsPage{}, err
		}
		page = domain.ListingsPage{Items: make([]domain.ListingView, 0, len(ls))}
		for _, l := range ls {
			page.Items = append(page.Items, l.View())
		}

		// optional size guard
		if b, _ := json.Marshal(page); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, pendingKey, page, int(s.cacheTTL.Seconds()))
		}
	}

	if page.Items == nil {
		page.Items = []domain.ListingView{}
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
	}
	return page, nil
}

// Stats returns queue counters for the dashboard. Rates and averages are
// rounded to one decimal.
func (s *QueryService) Stats(ctx context.Context) (domain.ModerationStats, error) {
	var st domain.ModerationStats
	if ok, _ := s.cache.Get(ctx, statsKey, &st); ok {
		return st, nil
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		return domain.ModerationStats{}, err
	}
	st.AvgScore = round1(st.AvgScore)
	if st.Total > 0 {
		st.AutoApprovalRate = round1(float64(st.AutoApproved) / float64(st.Total) * 100)
	}
	_ = s.cache.Set(ctx, statsKey, st, int(s.cacheTTL.Seconds()))
	return st, nil
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

// invalidateListing drops every cached read model a review can change.
func invalidateListing(ctx context.Context, c domain.Cache, id string) {
	_ = c.Del(ctx, listingKey(id))
	_ = c.Del(ctx, pendingKey)
	_ = c.Del(ctx, statsKey)
}
