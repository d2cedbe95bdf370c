package mysql

// Multi-row statements are assembled as prefix + N tuples + suffix.

const insertStagingPrefix = `
INSERT INTO staging_reviews
  (batch_id, review_id, reviewer_id, reviewer_name, email_address, reviewer_country,
   business_id, business_name, business_category, review_title, content, rating,
   review_date, review_ip_address)
VALUES `

const stagingTuple = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

const upsertUsersPrefix = `
INSERT INTO users (reviewer_id, reviewer_name, email_address, reviewer_country)
VALUES `

const upsertUsersOnDup = `
ON DUPLICATE KEY UPDATE
  reviewer_name    = VALUES(reviewer_name),
  email_address    = VALUES(email_address),
  reviewer_country = VALUES(reviewer_country)`

const userTuple = "(?,?,?,?)"

const upsertBusinessesPrefix = `
INSERT INTO businesses (business_id, business_name)
VALUES `

const upsertBusinessesOnDup = `
ON DUPLICATE KEY UPDATE
  business_name = VALUES(business_name)`

const businessTuple = "(?,?)"

const upsertReviewsPrefix = `
INSERT INTO reviews
  (review_id, reviewer_id, business_id, review_title, content, rating, review_date, review_ip_address)
VALUES `

const upsertReviewsOnDup = `
ON DUPLICATE KEY UPDATE
  reviewer_id       = VALUES(reviewer_id),
  business_id       = VALUES(business_id),
  review_title      = VALUES(review_title),
  content           = VALUES(content),
  rating            = VALUES(rating),
  review_date       = VALUES(review_date),
  review_ip_address = VALUES(review_ip_address)`

const reviewTuple = "(?,?,?,?,?,?,?,?)"

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Scan order is insertion order; the normalizer keeps the first row per key.
const readStagingSQL = `
SELECT id, batch_id, review_id, reviewer_id, reviewer_name, email_address, reviewer_country,
       business_id, business_name, business_category, review_title, content, rating,
       review_date, review_ip_address
FROM staging_reviews
ORDER BY id`

const selectReviewsSQL = `
SELECT r.review_id, r.reviewer_id, r.business_id, r.review_title, r.content,
       r.rating, r.review_date, r.review_ip_address
FROM reviews r`

const countReviewsSQL = `SELECT COUNT(*) FROM reviews r`

const joinUsersSQL = ` JOIN users u ON u.reviewer_id = r.reviewer_id`

// No secondary sort key: rows sharing a review_date come back in server order.
const orderReviewsSQL = ` ORDER BY r.review_date DESC`

const getUserSQL = `
SELECT reviewer_id, reviewer_name, email_address, reviewer_country
FROM users
WHERE reviewer_id = ?`

const listBusinessesSQL = `
SELECT business_id, business_name
FROM businesses
ORDER BY business_id`

const tableCountsSQL = `
SELECT
  (SELECT COUNT(*) FROM staging_reviews) AS staging_reviews,
  (SELECT COUNT(*) FROM users)           AS users,
  (SELECT COUNT(*) FROM businesses)      AS businesses,
  (SELECT COUNT(*) FROM reviews)         AS reviews`
