package domain

type Recommendation string

const (
	RecommendApproved Recommendation = "approved"
	RecommendReview   Recommendation = "review"
	RecommendRejected Recommendation = "rejected"
)

const UnknownTier = "unknown"

// ImageAssessment is the vision model's verdict on one photo. Analyzed is
// false when the call failed; Error then carries the cause.
type ImageAssessment struct {
	Image             string   `json:"image"`
	Analyzed          bool     `json:"analyzed"`
	Error             string   `json:"error,omitempty"`
	RoomType          string   `json:"roomType"`
	RoomCondition     string   `json:"roomCondition"`
	Cleanliness       string   `json:"cleanliness"`
	NaturalLight      string   `json:"naturalLight"`
	SpaceAssessment   string   `json:"spaceAssessment,omitempty"`
	DetectedAmenities []string `json:"detectedAmenities"`
	Confidence        float64  `json:"confidence"`
	Description       string   `json:"description,omitempty"`
	Warnings          []string `json:"warnings"`
}

type AnalysisSummary struct {
	TotalImages          int               `json:"totalImages"`
	AnalyzedImages       int               `json:"analyzedImages"`
	AllDetectedAmenities []string          `json:"allDetectedAmenities"`
	AverageConfidence    float64           `json:"averageConfidence"`
	PrimaryRoomType      string            `json:"primaryRoomType"`
	PerImageDetails      []ImageAssessment `json:"perImageDetails"`
}

type AmenityComparison struct {
	Verified         []string `json:"verified"`
	NotDetected      []string `json:"notDetected"`
	MissingFromInput []string `json:"missingFromInput"`
	VerifiedCount    int      `json:"verifiedCount"`
	TotalClaimed     int      `json:"totalClaimed"`
	TotalDetected    int      `json:"totalDetected"`
	AccuracyScore    int      `json:"accuracyScore"`
	IsAccurate       bool     `json:"isAccurate"`
}

type ImageQuality struct {
	TotalImages       int     `json:"totalImages" bson:"totalImages"`
	ClearImages       int     `json:"clearImages" bson:"clearImages"`
	AverageConfidence float64 `json:"averageConfidence" bson:"averageConfidence"`
	HasWarnings       bool    `json:"hasWarnings" bson:"hasWarnings"`
}

type ListingEvaluation struct {
	TotalScore          int               `json:"totalScore"`
	Recommendation      Recommendation    `json:"recommendation"`
	Reasons             []string          `json:"reasons"`
	AmenitiesComparison AmenityComparison `json:"amenitiesComparison"`
	ImageQuality        ImageQuality      `json:"imageQuality"`
	Analysis            AnalysisSummary   `json:"imageAnalysis"`
}

// Record snapshots the evaluation for storage on the listing.
func (e ListingEvaluation) Record() ModerationRecord {
	reasons := make([]string, len(e.Reasons))
	copy(reasons, e.Reasons)
	return ModerationRecord{
		TotalScore:        e.TotalScore,
		Recommendation:    e.Recommendation,
		Reasons:           reasons,
		AmenitiesAccuracy: e.AmenitiesComparison.AccuracyScore,
		ImageQuality:      e.ImageQuality,
	}
}

// AmenityCatalog is the vocabulary the listing form offers and the vision
// model is asked to look for. Labels are Vietnamese, as shown to landlords.
var AmenityCatalog = []string{
	"Điều hòa",
	"Giường",
	"Tủ quần áo",
	"Bàn làm việc",
	"Ghế",
	"Tủ lạnh",
	"Máy giặt",
	"Bếp",
	"Lò vi sóng",
	"Nóng lạnh",
	"TV",
	"Wifi",
	"Cửa sổ",
	"Ban công",
	"WC riêng",
	"Gương",
	"Quạt",
	"Rèm cửa",
	"Đèn",
	"Ổ cắm điện",
	"Sàn gỗ",
	"Gạch lát",
	"Thảm",
	"Kệ sách",
	"Sofa",
}
