package app

import (
	"fmt"
	"math"

	"rental_moderation/internal/domain"
)

// Evaluate turns the photo summary and the amenity check into one score and a
// verdict. It is a pure function: same inputs, same evaluation.
func Evaluate(sum domain.AnalysisSummary, cmp domain.AmenityComparison, meta domain.ListingMeta, th Thresholds) domain.ListingEvaluation {
	quality := imageQuality(sum, th.ClarityThreshold)

	amenityComponent := float64(cmp.AccuracyScore)
	qualityComponent := 0.0
	if quality.TotalImages > 0 {
		qualityComponent = float64(quality.ClearImages) / float64(quality.TotalImages) * 100
	}
	confidenceComponent := sum.AverageConfidence * 100

	w := th.Weights
	total := int(math.Round(w.Amenities*amenityComponent + w.ImageQuality*qualityComponent + w.Confidence*confidenceComponent))
	total = max(0, min(100, total))

	var rec domain.Recommendation
	switch {
	case total >= th.ApproveScore && !quality.HasWarnings:
		rec = domain.RecommendApproved
	case total < th.RejectScore || (!cmp.IsAccurate && amenityComponent < float64(th.RejectAmenityScore)):
		rec = domain.RecommendRejected
	default:
		rec = domain.RecommendReview
	}

	reasons := []string{}
	if !cmp.IsAccurate {
		reasons = append(reasons, fmt.Sprintf("only %d%% of the claimed amenities are visible in the photos (%d of %d)",
			cmp.AccuracyScore, cmp.VerifiedCount, cmp.TotalClaimed))
	}
	if meta.ClaimedCount == 0 {
		reasons = append(reasons, "no amenities declared")
	}
	if quality.TotalImages < th.MinImages {
		reasons = append(reasons, fmt.Sprintf("too few photos: %d, at least %d expected", quality.TotalImages, th.MinImages))
	}
	if sum.AnalyzedImages > 0 && sum.AverageConfidence < th.ClarityThreshold {
		reasons = append(reasons, fmt.Sprintf("photos are hard to read: average confidence %.2f", sum.AverageConfidence))
	}
	if quality.HasWarnings {
		reasons = append(reasons, "some photos carry quality warnings")
	}
	if total < th.RejectScore {
		reasons = append(reasons, fmt.Sprintf("overall score %d is below %d", total, th.RejectScore))
	}

	// Zero evidence: neither approve nor reject on nothing. Applied last.
	if sum.AnalyzedImages == 0 {
		rec = domain.RecommendReview
		reasons = append(reasons, "no photo could be analyzed, a moderator has to decide")
	}

	return domain.ListingEvaluation{
		TotalScore:          total,
		Recommendation:      rec,
		Reasons:             reasons,
		AmenitiesComparison: cmp,
		ImageQuality:        quality,
		Analysis:            sum,
	}
}

func imageQuality(sum domain.AnalysisSummary, clarity float64) domain.ImageQuality {
	q := domain.ImageQuality{
		TotalImages:       sum.TotalImages,
		AverageConfidence: sum.AverageConfidence,
	}
	for _, d := range sum.PerImageDetails {
		if !d.Analyzed {
			continue
		}
		if len(d.Warnings) > 0 {
			q.HasWarnings = true
			continue
		}
		if d.Confidence >= clarity {
			q.ClearImages++
		}
	}
	return q
}
