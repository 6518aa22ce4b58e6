package domain

import "time"

type ListingStatus string

const (
	StatusAvailable ListingStatus = "available"
	StatusRented    ListingStatus = "rented"
	StatusPending   ListingStatus = "pending"
	StatusInactive  ListingStatus = "inactive"
)

// AdminAction is what a moderator decided after looking at the evaluation.
type AdminAction string

const (
	ActionApprove        AdminAction = "approve"
	ActionReject         AdminAction = "reject"
	ActionRequestChanges AdminAction = "request_changes"
)

// Status maps an admin action to the listing status it results in.
func (a AdminAction) Status() (ListingStatus, bool) {
	switch a {
	case ActionApprove:
		return StatusAvailable, true
	case ActionReject:
		return StatusInactive, true
	case ActionRequestChanges:
		return StatusPending, true
	}
	return "", false
}

type Listing struct {
	ID           string
	LandlordID   string
	Title        string
	PropertyType string
	Price        float64
	Area         float64
	Amenities    []string
	Images       []string
	Status       ListingStatus
	Moderation   *ModerationRecord
	CreatedAt    time.Time
}

// ListingMeta is the part of a listing the evaluator looks at besides the photos.
type ListingMeta struct {
	PropertyType string  `json:"propertyType"`
	Price        float64 `json:"price"`
	Area         float64 `json:"area"`
	ClaimedCount int     `json:"claimedCount"`
}

func (l Listing) Meta() ListingMeta {
	return ListingMeta{
		PropertyType: l.PropertyType,
		Price:        l.Price,
		Area:         l.Area,
		ClaimedCount: len(l.Amenities),
	}
}

// ModerationRecord is stored on the listing next to its status.
type ModerationRecord struct {
	EvaluatedAt       time.Time      `json:"evaluatedAt" bson:"evaluatedAt"`
	TotalScore        int            `json:"totalScore" bson:"totalScore"`
	Recommendation    Recommendation `json:"recommendation" bson:"recommendation"`
	Reasons           []string       `json:"reasons" bson:"reasons"`
	AmenitiesAccuracy int            `json:"amenitiesAccuracy" bson:"amenitiesAccuracy"`
	ImageQuality      ImageQuality   `json:"imageQuality" bson:"imageQuality"`
	AdminAction       AdminAction    `json:"adminAction,omitempty" bson:"adminAction,omitempty"`
	AdminNotes        string         `json:"adminNotes,omitempty" bson:"adminNotes,omitempty"`
	AdminID           string         `json:"adminId,omitempty" bson:"adminId,omitempty"`
}

type ListingsPage struct {
	Items []ListingView `json:"items"`
}

// ListingView is the read model served to the admin UI.
type ListingView struct {
	ID           string            `json:"id"`
	LandlordID   string            `json:"landlordId"`
	Title        string            `json:"title"`
	PropertyType string            `json:"propertyType"`
	Price        float64           `json:"price"`
	Area         float64           `json:"area"`
	Amenities    []string          `json:"amenities"`
	Images       []string          `json:"images"`
	Status       ListingStatus     `json:"status"`
	Moderation   *ModerationRecord `json:"moderation,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func (l Listing) View() ListingView {
	return ListingView{
		ID:           l.ID,
		LandlordID:   l.LandlordID,
		Title:        l.Title,
		PropertyType: l.PropertyType,
		Price:        l.Price,
		Area:         l.Area,
		Amenities:    l.Amenities,
		Images:       l.Images,
		Status:       l.Status,
		Moderation:   l.Moderation,
		CreatedAt:    l.CreatedAt,
	}
}

// ModerationStats summarises the moderation queue for the admin dashboard.
type ModerationStats struct {
	Total            int     `json:"total"`
	AutoApproved     int     `json:"autoApproved"`
	PendingReview    int     `json:"pendingReview"`
	Rejected         int     `json:"rejected"`
	Reviewed         int     `json:"reviewed"`
	AvgScore         float64 `json:"avgScore"`
	AutoApprovalRate float64 `json:"autoApprovalRate"`
}
