package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rental_moderation/internal/adapters/observability"
	"rental_moderation/internal/domain"
)

const (
	defaultMaxImages     = 20
	defaultNotifyTimeout = 5 * time.Second
)

// ModerationService is the entry point for landlord pre-checks and admin
// reviews. It holds no per-listing state between calls.
type ModerationService struct {
	analyzer      *ImageAnalyzer
	store         domain.ListingStore
	notifier      domain.Notifier
	cache         domain.Cache
	th            Thresholds
	maxImages     int
	notifyTimeout time.Duration
	now           func() time.Time

	notifications sync.WaitGroup
}

type ReviewResult struct {
	ListingID  string                   `json:"listingId"`
	Status     domain.ListingStatus     `json:"status"`
	Record     domain.ModerationRecord  `json:"moderation"`
	Evaluation domain.ListingEvaluation `json:"evaluation"`
}

func NewModerationService(a *ImageAnalyzer, store domain.ListingStore, n domain.Notifier, cache domain.Cache, th Thresholds) *ModerationService {
	return &ModerationService{
		analyzer:      a,
		store:         store,
		notifier:      n,
		cache:         cache,
		th:            th,
		maxImages:     defaultMaxImages,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
}

// WithClock swaps the clock used to stamp moderation records.
func (s *ModerationService) WithClock(now func() time.Time) *ModerationService {
	s.now = now
	return s
}

func (s *ModerationService) WithMaxImages(n int) *ModerationService {
	if n > 0 {
		s.maxImages = n
	}
	return s
}

func (s *ModerationService) Thresholds() Thresholds { return s.th }

func (s *ModerationService) validateImages(images []string) error {
	if len(images) == 0 {
		return fmt.Errorf("%w: at least one image is required", domain.ErrInvalidInput)
	}
	if len(images) > s.maxImages {
		return fmt.Errorf("%w: at most %d images per listing, got %d", domain.ErrInvalidInput, s.maxImages, len(images))
	}
	for i, img := range images {
		if strings.TrimSpace(img) == "" {
			return fmt.Errorf("%w: image %d is empty", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// Evaluate scores a listing draft without touching storage.
func (s *ModerationService) Evaluate(ctx context.Context, images, claimed []string, meta domain.ListingMeta) (domain.ListingEvaluation, error) {
	if err := s.validateImages(images); err != nil {
		return domain.ListingEvaluation{}, err
	}
	meta.ClaimedCount = len(claimed)
	return s.evaluate(ctx, images, claimed, meta), nil
}

func (s *ModerationService) evaluate(ctx context.Context, images, claimed []string, meta domain.ListingMeta) domain.ListingEvaluation {
	sum := s.analyzer.AnalyzeAll(ctx, images)
	cmp := CompareAmenities(claimed, sum.AllDetectedAmenities, s.th.AccuracyThreshold)
	ev := Evaluate(sum, cmp, meta, s.th)
	observability.ObserveEvaluation(string(ev.Recommendation), ev.TotalScore)
	return ev
}

// Review re-evaluates a stored listing, applies the admin's decision and
// writes status and moderation record together.
func (s *ModerationService) Review(ctx context.Context, listingID string, action domain.AdminAction, notes, adminID string) (ReviewResult, error) {
	status, ok := action.Status()
	if !ok {
		return ReviewResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}
	if strings.TrimSpace(adminID) == "" {
		return ReviewResult{}, fmt.Errorf("%w: admin id is required", domain.ErrInvalidInput)
	}

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("load listing %s: %w", listingID, err)
	}

	// a listing without photos still gets a (zero evidence) evaluation
	images := l.Images
	if len(images) > s.maxImages {
		images = images[:s.maxImages]
	}
	ev := s.evaluate(ctx, images, l.Amenities, l.Meta())
	if len(images) < len(l.Images) {
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("only the first %d of %d photos were analyzed", len(images), len(l.Images)))
	}

	rec := ev.Record()
	rec.EvaluatedAt = s.now().UTC()
	rec.AdminAction = action
	rec.AdminNotes = strings.TrimSpace(notes)
	rec.AdminID = adminID

	if err := s.store.UpdateModeration(ctx, listingID, status, rec); err != nil {
		return ReviewResult{}, fmt.Errorf("persist moderation for %s: %w", listingID, err)
	}
	observability.ObserveReview(string(action))

	if s.cache != nil {
		invalidateListing(ctx, s.cache, listingID)
	}

	log.Info().
		Str("listing", listingID).
		Str("admin", adminID).
		Str("action", string(action)).
		Str("status", string(status)).
		Int("score", ev.TotalScore).
		Str("recommendation", string(ev.Recommendation)).
		Msg("listing reviewed")

	s.notify(ctx, l, status, ev)

	return ReviewResult{ListingID: listingID, Status: status, Record: rec, Evaluation: ev}, nil
}

// notify sends in the background so a slow notifier never holds the review
// response. Failures are logged and counted, never returned.
func (s *ModerationService) notify(ctx context.Context, l domain.Listing, status domain.ListingStatus, ev domain.ListingEvaluation) {
	if s.notifier == nil {
		return
	}
	if l.LandlordID == "" {
		log.Warn().Str("listing", l.ID).Msg("listing has no landlord, skipping notification")
		observability.ObserveNotification("skipped")
		return
	}

	n := buildNotification(l, status, ev, s.now().UTC())

	// the review is already committed; a cancelled request must not drop the notice
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer cancel()
		if err := s.notifier.Notify(nctx, n); err != nil {
			log.Warn().Str("listing", n.ListingID).Str("user", n.UserID).Err(err).Msg("moderation notification failed")
			observability.ObserveNotification("failed")
			return
		}
		observability.ObserveNotification("sent")
	}()
}

// WaitNotifications blocks until every notification started by Review has
// finished. Call it on shutdown after the HTTP server stops accepting reviews.
func (s *ModerationService) WaitNotifications() { s.notifications.Wait() }

func buildNotification(l domain.Listing, status domain.ListingStatus, ev domain.ListingEvaluation, at time.Time) domain.Notification {
	title, color := "Your listing was reviewed", "blue"
	switch status {
	case domain.StatusAvailable:
		title, color = "Your listing was approved", "green"
	case domain.StatusInactive:
		title, color = "Your listing was rejected", "red"
	case domain.StatusPending:
		title, color = "Changes requested for your listing", "yellow"
	}
	name := l.Title
	if name == "" {
		name = l.ID
	}
	msg := fmt.Sprintf("%s: score %d/100.", name, ev.TotalScore)
	if len(ev.Reasons) > 0 {
		msg += " " + strings.Join(ev.Reasons, "; ") + "."
	}
	reasons := make([]string, len(ev.Reasons))
	copy(reasons, ev.Reasons)

	return domain.Notification{
		ID:        uuid.NewString(),
		UserID:    l.LandlordID,
		Kind:      domain.KindModerationResult,
		Title:     title,
		Message:   msg,
		ListingID: l.ID,
		Status:    status,
		Score:     ev.TotalScore,
		Reasons:   reasons,
		Color:     color,
		CreatedAt: at,
	}
}

// CompareAmenities is the standalone pre-check used by the listing form.
func (s *ModerationService) CompareAmenities(claimed, detected []string) domain.AmenityComparison {
	return CompareAmenities(claimed, detected, s.th.AccuracyThreshold)
}

// CompareWithImages detects amenities on the photos first, then compares.
func (s *ModerationService) CompareWithImages(ctx context.Context, claimed, images []string) (domain.AmenityComparison, domain.AnalysisSummary, error) {
	if err := s.validateImages(images); err != nil {
		return domain.AmenityComparison{}, domain.AnalysisSummary{}, err
	}
	sum := s.analyzer.AnalyzeAll(ctx, images)
	return s.CompareAmenities(claimed, sum.AllDetectedAmenities), sum, nil
}

func (s *ModerationService) AnalyzeImage(ctx context.Context, image string) (domain.ImageAssessment, error) {
	if strings.TrimSpace(image) == "" {
		return domain.ImageAssessment{}, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}
	return s.analyzer.Analyze(ctx, image), nil
}

func (s *ModerationService) AnalyzeImages(ctx context.Context, images []string) (domain.AnalysisSummary, error) {
	if err := s.validateImages(images); err != nil {
		return domain.AnalysisSummary{}, err
	}
	return s.analyzer.AnalyzeAll(ctx, images), nil
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
