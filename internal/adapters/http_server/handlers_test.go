package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "rental_moderation/internal/adapters/http_server"
	"rental_moderation/internal/app"
	"rental_moderation/internal/domain"
)

// ---- fakes ----

type stubVision struct{}

func (stubVision) AnalyzeImage(ctx context.Context, ref string) (map[string]any, error) {
	return map[string]any{
		"roomType":          "bedroom",
		"detectedAmenities": []any{"Giường", "Điều hòa"},
		"confidence":        0.9,
	}, nil
}

type memStore struct {
	mu sync.Mutex
	m  map[string]domain.Listing
}

func (s *memStore) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.m[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *memStore) UpdateModeration(ctx context.Context, id string, st domain.ListingStatus, rec domain.ModerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.m[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status, l.Moderation = st, &rec
	s.m[id] = l
	return nil
}

func (s *memStore) ListPending(ctx context.Context, limit int) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Listing
	for _, l := range s.m {
		if l.Status == domain.StatusPending {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) Stats(ctx context.Context) (domain.ModerationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := domain.ModerationStats{Total: len(s.m)}
	for _, l := range s.m {
		switch l.Status {
		case domain.StatusPending:
			st.PendingReview++
		case domain.StatusInactive:
			st.Rejected++
		}
		if l.Moderation != nil {
			st.Reviewed++
		}
	}
	return st, nil
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string, dst any) (bool, error)  { return false, nil }
func (nopCache) Set(ctx context.Context, key string, v any, ttlSec int) error { return nil }
func (nopCache) Del(ctx context.Context, key string) error                    { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	store := &memStore{m: map[string]domain.Listing{
		"lst-1": {
			ID:         "lst-1",
			LandlordID: "u-1",
			Title:      "Phòng trọ",
			Amenities:  []string{"Giường", "Điều hòa"},
			Images:     []string{"a.jpg", "b.jpg", "c.jpg"},
			Status:     domain.StatusPending,
			CreatedAt:  time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	a := app.NewImageAnalyzer(stubVision{}, time.Second, 2)
	m := app.NewModerationService(a, store, nil, nopCache{}, app.DefaultThresholds())
	q := app.NewQueryService(store, nopCache{}, time.Minute)

	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{M: m, Q: q})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestEvaluateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	res := post(t, ts.URL+"/v1/moderation/evaluate",
		`{"images":["a.jpg","b.jpg","c.jpg"],"amenities":["giường","Wifi"],"propertyType":"phong-tro","price":3000000,"area":20}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var ev domain.ListingEvaluation
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ev))
	assert.Equal(t, 50, ev.AmenitiesComparison.AccuracyScore)
	assert.Equal(t, []string{"giường"}, ev.AmenitiesComparison.Verified)
	assert.Equal(t, 3, ev.Analysis.AnalyzedImages)
}

func TestEvaluateEndpoint_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	res := post(t, ts.URL+"/v1/moderation/evaluate", `{"images":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	res = post(t, ts.URL+"/v1/moderation/evaluate", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCompareAmenitiesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res := post(t, ts.URL+"/v1/moderation/compare-amenities",
		`{"claimed":["Điều hòa","Wifi"],"detected":["điều hòa","giường"]}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body struct {
		Comparison domain.AmenityComparison `json:"comparison"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, 50, body.Comparison.AccuracyScore)
	assert.Equal(t, []string{"giường"}, body.Comparison.MissingFromInput)

	res = post(t, ts.URL+"/v1/moderation/compare-amenities", `{"claimed":["Wifi"],"images":["a.jpg"]}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = post(t, ts.URL+"/v1/moderation/compare-amenities", `{"claimed":["Wifi"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAnalyzeEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	res := post(t, ts.URL+"/v1/moderation/analyze-image", `{"image":"a.jpg"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var a domain.ImageAssessment
	require.NoError(t, json.NewDecoder(res.Body).Decode(&a))
	assert.True(t, a.Analyzed)

	res = post(t, ts.URL+"/v1/moderation/analyze-image", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = post(t, ts.URL+"/v1/moderation/analyze-images", `{"images":["a.jpg","b.jpg"]}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var sum domain.AnalysisSummary
	require.NoError(t, json.NewDecoder(res.Body).Decode(&sum))
	assert.Equal(t, 2, sum.AnalyzedImages)
	assert.Equal(t, "bedroom", sum.PrimaryRoomType)
}

func TestReviewEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	url := ts.URL + "/v1/moderation/review/lst-1"

	res := post(t, url, `{"action":"approve"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	admin := map[string]string{"X-Admin-ID": "admin-1"}
	res = post(t, url, `{"action":"publish"}`, admin)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = post(t, ts.URL+"/v1/moderation/review/nope", `{"action":"approve"}`, admin)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = post(t, url, `{"action":"reject","notes":"photos do not match"}`, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out app.ReviewResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, domain.StatusInactive, out.Status)
	assert.Equal(t, "photos do not match", out.Record.AdminNotes)
	assert.Equal(t, "admin-1", out.Record.AdminID)

	l, _ := store.GetListing(context.Background(), "lst-1")
	assert.Equal(t, domain.StatusInactive, l.Status)
}

func TestModerationView_ETag(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/listings/lst-1/moderation")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"`))

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/listings/lst-1/moderation", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotModified, res2.StatusCode)

	res3, err := http.Get(ts.URL + "/v1/listings/missing/moderation")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusNotFound, res3.StatusCode)
}

func TestPendingEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/moderation/pending?limit=10")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var page domain.ListingsPage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "lst-1", page.Items[0].ID)

	for _, bad := range []string{"0", "abc", "201"} {
		r, err := http.Get(ts.URL + "/v1/moderation/pending?limit=" + bad)
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusBadRequest, r.StatusCode, bad)
	}
}

func TestAmenityCatalogEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	res, err := http.Get(ts.URL + "/v1/moderation/amenities")
	require.NoError(t, err)
	defer res.Body.Close()

	var body struct {
		Amenities []string `json:"amenities"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, domain.AmenityCatalog, body.Amenities)
}

func TestStatsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/v1/moderation/stats")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("ETag"))

	var st domain.ModerationStats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.PendingReview)
	assert.Zero(t, st.Reviewed)

	rv := post(t, ts.URL+"/v1/moderation/review/lst-1", `{"action":"reject"}`, map[string]string{"X-Admin-ID": "admin-1"})
	require.Equal(t, http.StatusOK, rv.StatusCode)

	res2, err := http.Get(ts.URL + "/v1/moderation/stats")
	require.NoError(t, err)
	defer res2.Body.Close()
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&st))
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Reviewed)
	assert.Zero(t, st.PendingReview)
}
