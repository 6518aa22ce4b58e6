package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rental_moderation/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertListing is used by seeding and tests; listings are owned by the CRUD app.
func (r *Repo) UpsertListing(ctx context.Context, l domain.Listing) error {
	status := l.Status
	if status == "" {
		status = domain.StatusPending
	}
	_, err := r.db.ExecContext(ctx, upsertListingSQL,
		l.ID,
		l.LandlordID,
		l.Title,
		l.PropertyType,
		l.Price,
		l.Area,
		jsonList(l.Amenities),
		jsonList(l.Images),
		string(status),
	)
	return err
}

func (r *Repo) UpdateModeration(ctx context.Context, id string, status domain.ListingStatus, rec domain.ModerationRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal moderation record: %w", err)
	}
	res, err := r.db.ExecContext(ctx, updateModerationSQL, string(status), string(recJSON), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows when nothing changed; tell that apart from a missing row.
	var one int
	if err := r.db.QueryRowContext(ctx, listingExistsSQL, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var l domain.Listing
	var status string
	var amenitiesJSON, imagesJSON, moderationJSON []byte

	if err := row.Scan(
		&l.ID,
		&l.LandlordID,
		&l.Title,
		&l.PropertyType,
		&l.Price,
		&l.Area,
		&amenitiesJSON,
		&imagesJSON,
		&status,
		&moderationJSON,
		&l.CreatedAt,
	); err != nil {
		return domain.Listing{}, err
	}
	l.Status = domain.ListingStatus(status)

	_ = json.Unmarshal(amenitiesJSON, &l.Amenities)
	_ = json.Unmarshal(imagesJSON, &l.Images)
	if len(moderationJSON) > 0 {
		var rec domain.ModerationRecord
		if err := json.Unmarshal(moderationJSON, &rec); err != nil {
			return domain.Listing{}, fmt.Errorf("decode moderation of %s: %w", l.ID, err)
		}
		l.Moderation = &rec
	}
	return l, nil
}

func (r *Repo) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, err
	}
	return l, nil
}

func (r *Repo) ListPending(ctx context.Context, limit int) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listPendingSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Notify stores the notification so the web app can list it later.
func (r *Repo) Notify(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"status":  n.Status,
		"score":   n.Score,
		"reasons": n.Reasons,
	})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertNotificationSQL,
		n.ID,
		n.UserID,
		n.Kind,
		n.Title,
		n.Message,
		valStr(n.ListingID),
		string(payload),
		n.Color,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store notification for %s: %w", n.UserID, err)
	}
	return nil
}

func (r *Repo) Stats(ctx context.Context) (domain.ModerationStats, error) {
	var st domain.ModerationStats
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, moderationStatsSQL).Scan(
		&st.Total,
		&st.AutoApproved,
		&st.PendingReview,
		&st.Rejected,
		&st.Reviewed,
		&avg,
	)
	if err != nil {
		return domain.ModerationStats{}, fmt.Errorf("moderation stats: %w", err)
	}
	st.AvgScore = avg.Float64
	return st, nil
}
