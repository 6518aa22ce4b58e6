package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"rental_moderation/internal/domain"
)

// ---- fakes ----

type fakeVision struct {
	payloads map[string]map[string]any
	errs     map[string]error
	delay    time.Duration

	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

func (f *fakeVision) AnalyzeImage(ctx context.Context, ref string) (map[string]any, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[ref]; ok {
		return nil, err
	}
	if p, ok := f.payloads[ref]; ok {
		return p, nil
	}
	return nil, errors.New("model unavailable")
}

func roomPayload(room string, conf float64, amenities ...string) map[string]any {
	list := make([]any, 0, len(amenities))
	for _, a := range amenities {
		list = append(list, a)
	}
	return map[string]any{
		"roomType":          room,
		"roomCondition":     "good",
		"cleanliness":       "clean",
		"naturalLight":      "bright",
		"detectedAmenities": list,
		"confidence":        conf,
		"warnings":          []any{},
	}
}

type fakeStore struct {
	mu        sync.Mutex
	listings  map[string]domain.Listing
	updateErr error
	updates   int
}

func newFakeStore(ls ...domain.Listing) *fakeStore {
	s := &fakeStore{listings: map[string]domain.Listing{}}
	for _, l := range ls {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeStore) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *fakeStore) UpdateModeration(ctx context.Context, id string, status domain.ListingStatus, rec domain.ModerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	l, ok := s.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	r := rec
	l.Moderation = &r
	s.listings[id] = l
	s.updates++
	return nil
}

func (s *fakeStore) ListPending(ctx context.Context, limit int) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Listing
	for _, l := range s.listings {
		if l.Status == domain.StatusPending && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeStore) Stats(ctx context.Context) (domain.ModerationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st domain.ModerationStats
	var scoreSum int
	for _, l := range s.listings {
		st.Total++
		switch l.Status {
		case domain.StatusPending:
			st.PendingReview++
		case domain.StatusInactive:
			st.Rejected++
		}
		if l.Moderation == nil {
			continue
		}
		st.Reviewed++
		scoreSum += l.Moderation.TotalScore
		if l.Status == domain.StatusAvailable && l.Moderation.Recommendation == domain.RecommendApproved {
			st.AutoApproved++
		}
	}
	if st.Reviewed > 0 {
		st.AvgScore = float64(scoreSum) / float64(st.Reviewed)
	}
	return st, nil
}

func (s *fakeStore) get(id string) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[id]
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []domain.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// fakeCache stores JSON like the Redis adapter does, so typed reads work.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	dels  []string
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}
