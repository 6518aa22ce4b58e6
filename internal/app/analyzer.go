package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rental_moderation/internal/adapters/observability"
	"rental_moderation/internal/domain"
)

const (
	defaultVisionTimeout     = 15 * time.Second
	defaultVisionConcurrency = 4
)

// ImageAnalyzer runs the vision model over listing photos. A failed photo is
// reported as an unanalyzed assessment, never as an error.
type ImageAnalyzer struct {
	vision      domain.VisionClient
	timeout     time.Duration
	concurrency int64
}

func NewImageAnalyzer(v domain.VisionClient, timeout time.Duration, concurrency int) *ImageAnalyzer {
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultVisionConcurrency
	}
	return &ImageAnalyzer{vision: v, timeout: timeout, concurrency: int64(concurrency)}
}

func (a *ImageAnalyzer) Analyze(ctx context.Context, image string) domain.ImageAssessment {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := a.vision.AnalyzeImage(cctx, image)
	var out domain.ImageAssessment
	if err == nil {
		out, err = mapAssessment(image, payload)
	}
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("vision timed out after %s: %w", a.timeout, err)
		}
		log.Warn().Str("image", image).Err(err).Msg("image analysis failed")
		observability.ObserveImageAnalysis("failed")
		return failedAssessment(image, err)
	}
	observability.ObserveImageAnalysis("ok")
	return out
}

// AnalyzeAll fans out one call per image and waits for all of them. One
// failure does not cancel the others; details keep the input order.
func (a *ImageAnalyzer) AnalyzeAll(ctx context.Context, images []string) domain.AnalysisSummary {
	details := make([]domain.ImageAssessment, len(images))
	sem := semaphore.NewWeighted(a.concurrency)
	var wg sync.WaitGroup

	for i, img := range images {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			// request is gone; whatever is left counts as failed
			details[i] = failedAssessment(img, err)
			continue
		}
		wg.Add(1)
		go func(i int, img string) {
			defer wg.Done()
			defer sem.Release(1)
			details[i] = a.Analyze(ctx, img)
		}(i, img)
	}

	wg.Wait()
	return Summarize(details)
}

func failedAssessment(image string, err error) domain.ImageAssessment {
	return domain.ImageAssessment{
		Image:             image,
		Analyzed:          false,
		Error:             err.Error(),
		RoomType:          domain.UnknownTier,
		RoomCondition:     domain.UnknownTier,
		Cleanliness:       domain.UnknownTier,
		NaturalLight:      domain.UnknownTier,
		DetectedAmenities: []string{},
		Warnings:          []string{},
	}
}
