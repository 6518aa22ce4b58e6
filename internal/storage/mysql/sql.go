package mysql

const upsertListingSQL = `
INSERT INTO listings
  (id, landlord_id, title, property_type, price, area, amenities, images, status)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  landlord_id   = VALUES(landlord_id),
  title         = VALUES(title),
  property_type = VALUES(property_type),
  price         = VALUES(price),
  area          = VALUES(area),
  amenities     = VALUES(amenities),
  images        = VALUES(images),
  status        = VALUES(status)
`

// Status and moderation record go out in one statement so a reader never
// sees one without the other.
const updateModerationSQL = `
UPDATE listings
SET status = ?, moderation = ?
WHERE id = ?
`

const listingExistsSQL = `SELECT 1 FROM listings WHERE id = ?`

const insertNotificationSQL = `
INSERT INTO notifications
  (id, user_id, kind, title, message, listing_id, payload, color, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const listingColumns = `
  id,
  landlord_id,
  title,
  property_type,
  price,
  area,
  amenities,
  images,
  status,
  moderation,
  created_at
`

const getListingSQL = `SELECT` + listingColumns + `FROM listings WHERE id = ?`

// Newest first; aligns with idx_listings_status_created.
const listPendingSQL = `SELECT` + listingColumns + `FROM listings
WHERE status = 'pending'
ORDER BY created_at DESC, id DESC
LIMIT ?`

// One pass over listings; AVG and COUNT skip rows without a moderation record.
const moderationStatsSQL = `
SELECT
  COUNT(*),
  COALESCE(SUM(status = 'available'
    AND JSON_UNQUOTE(JSON_EXTRACT(moderation, '$.recommendation')) = 'approved'), 0),
  COALESCE(SUM(status = 'pending'), 0),
  COALESCE(SUM(status = 'inactive'), 0),
  COUNT(moderation),
  AVG(CAST(JSON_EXTRACT(moderation, '$.totalScore') AS DOUBLE))
FROM listings
`
