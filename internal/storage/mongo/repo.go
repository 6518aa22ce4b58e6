// Package mongo stores listings in the "properties" collection shared with
// the listing web app.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rental_moderation/internal/domain"
)

const propertiesCollection = "properties"

// Older documents store amenities as a list of labels, newer ones as a set of
// flags. Flags are reported with the label the form shows for them.
var amenityFlags = []struct{ key, label string }{
	{"wifi", "Wifi"},
	{"ac", "Điều hòa"},
	{"parking", "Bãi đỗ xe"},
	{"kitchen", "Bếp"},
	{"water", "Nóng lạnh"},
	{"laundry", "Máy giặt"},
	{"balcony", "Ban công"},
	{"security", "Bảo vệ"},
}

type propertyDoc struct {
	ID           any                      `bson:"_id"`
	Landlord     any                      `bson:"landlord"`
	Title        string                   `bson:"title"`
	PropertyType string                   `bson:"propertyType"`
	Price        float64                  `bson:"price"`
	Area         float64                  `bson:"area"`
	Amenities    bson.RawValue            `bson:"amenities"`
	Images       []string                 `bson:"images"`
	Status       string                   `bson:"status"`
	AIModeration *domain.ModerationRecord `bson:"aiModeration,omitempty"`
	CreatedAt    time.Time                `bson:"createdAt"`
}

func (d propertyDoc) listing() domain.Listing {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return domain.Listing{
		ID:           idString(d.ID),
		LandlordID:   idString(d.Landlord),
		Title:        d.Title,
		PropertyType: d.PropertyType,
		Price:        d.Price,
		Area:         d.Area,
		Amenities:    decodeAmenities(d.Amenities),
		Images:       images,
		Status:       domain.ListingStatus(d.Status),
		Moderation:   d.AIModeration,
		CreatedAt:    d.CreatedAt,
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// docID keeps ObjectIDs as ObjectIDs so lookups hit documents created by the web app.
func docID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func decodeAmenities(raw bson.RawValue) []string {
	out := []string{}
	switch raw.Type {
	case bson.TypeArray:
		var labels []string
		if err := raw.Unmarshal(&labels); err == nil {
			out = append(out, labels...)
		}
	case bson.TypeEmbeddedDocument:
		var flags map[string]bool
		if err := raw.Unmarshal(&flags); err != nil {
			return out
		}
		for _, f := range amenityFlags {
			if flags[f.key] {
				out = append(out, f.label)
			}
		}
	}
	return out
}

type Repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) *Repo { return &Repo{coll: db.Collection(propertiesCollection)} }

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return c, nil
}

// EnsureIndexes backs the pending queue query.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("status_createdAt"),
	})
	return err
}

// UpsertListing is used by seeding and tests.
func (r *Repo) UpsertListing(ctx context.Context, l domain.Listing) error {
	status := l.Status
	if status == "" {
		status = domain.StatusPending
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	amenities := l.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	images := l.Images
	if images == nil {
		images = []string{}
	}
	doc := bson.M{
		"landlord":     docID(l.LandlordID),
		"title":        l.Title,
		"propertyType": l.PropertyType,
		"price":        l.Price,
		"area":         l.Area,
		"amenities":    amenities,
		"images":       images,
		"status":       string(status),
		"createdAt":    created,
		"updatedAt":    time.Now().UTC(),
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": docID(l.ID)}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *Repo) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	var d propertyDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": docID(id)}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, err
	}
	return d.listing(), nil
}

// UpdateModeration sets status and aiModeration in one single-document
// update, which MongoDB applies atomically.
func (r *Repo) UpdateModeration(ctx context.Context, id string, status domain.ListingStatus, rec domain.ModerationRecord) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": docID(id)},
		bson.M{"$set": bson.M{
			"status":       string(status),
			"aiModeration": rec,
			"updatedAt":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ListPending(ctx context.Context, limit int) ([]domain.Listing, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"status": string(domain.StatusPending)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []propertyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.listing())
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context) (domain.ModerationStats, error) {
	countIf := func(cond any) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}
	statusIs := func(s domain.ListingStatus) bson.M {
		return bson.M{"$eq": bson.A{"$status", string(s)}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"autoApproved": countIf(bson.M{"$and": bson.A{
				statusIs(domain.StatusAvailable),
				bson.M{"$eq": bson.A{"$aiModeration.recommendation", string(domain.RecommendApproved)}},
			}}),
			"pending":  countIf(statusIs(domain.StatusPending)),
			"rejected": countIf(statusIs(domain.StatusInactive)),
			"reviewed": countIf(bson.M{"$ne": bson.A{bson.M{"$type": "$aiModeration.totalScore"}, "missing"}}),
			"avgScore": bson.M{"$avg": "$aiModeration.totalScore"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.ModerationStats{}, fmt.Errorf("moderation stats: %w", err)
	}
	var rows []struct {
		Total        int      `bson:"total"`
		AutoApproved int      `bson:"autoApproved"`
		Pending      int      `bson:"pending"`
		Rejected     int      `bson:"rejected"`
		Reviewed     int      `bson:"reviewed"`
		AvgScore     *float64 `bson:"avgScore"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domain.ModerationStats{}, fmt.Errorf("moderation stats: %w", err)
	}
	// An empty collection yields no group at all.
	if len(rows) == 0 {
		return domain.ModerationStats{}, nil
	}
	row := rows[0]
	st := domain.ModerationStats{
		Total:         row.Total,
		AutoApproved:  row.AutoApproved,
		PendingReview: row.Pending,
		Rejected:      row.Rejected,
		Reviewed:      row.Reviewed,
	}
	if row.AvgScore != nil {
		st.AvgScore = *row.AvgScore
	}
	return st, nil
}
