package app

import (
	"gonum.org/v1/gonum/stat"

	"rental_moderation/internal/domain"
)

// Summarize merges per-image assessments (failures included) into the
// listing-level summary.
func Summarize(details []domain.ImageAssessment) domain.AnalysisSummary {
	sum := domain.AnalysisSummary{
		TotalImages:          len(details),
		AllDetectedAmenities: []string{},
		PrimaryRoomType:      domain.UnknownTier,
		PerImageDetails:      details,
	}
	if sum.PerImageDetails == nil {
		sum.PerImageDetails = []domain.ImageAssessment{}
	}

	amenities := newOrderedAmenities()
	confidences := make([]float64, 0, len(details))
	roomCounts := map[string]int{}
	var roomOrder []string

	for _, d := range details {
		if !d.Analyzed {
			continue
		}
		sum.AnalyzedImages++
		confidences = append(confidences, d.Confidence)
		for _, a := range d.DetectedAmenities {
			amenities.add(a)
		}
		if d.RoomType == "" || d.RoomType == domain.UnknownTier {
			continue
		}
		if roomCounts[d.RoomType] == 0 {
			roomOrder = append(roomOrder, d.RoomType)
		}
		roomCounts[d.RoomType]++
	}

	sum.AllDetectedAmenities = amenities.list()
	if len(confidences) > 0 {
		sum.AverageConfidence = stat.Mean(confidences, nil)
	}

	// strict > keeps the first-seen room type on ties
	best := 0
	for _, rt := range roomOrder {
		if roomCounts[rt] > best {
			best = roomCounts[rt]
			sum.PrimaryRoomType = rt
		}
	}
	return sum
}
