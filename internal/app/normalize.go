package app

import "legal_reporting/internal/domain"

// reviewKey is the identity of a logical review across staging rows.
type reviewKey struct {
	reviewID   string
	reviewerID string
	businessID string
	date       int64 // unix nanoseconds, valid when hasDate
	hasDate    bool
	content    string
}

func keyOf(r domain.StagingRecord) reviewKey {
	k := reviewKey{
		reviewID:   r.ReviewID,
		reviewerID: r.ReviewerID,
		businessID: r.BusinessID,
		content:    r.Content,
	}
	if r.ReviewDate != nil {
		k.date = r.ReviewDate.UnixNano()
		k.hasDate = true
	}
	return k
}

// Normalize deduplicates staging rows and projects them into users,
// businesses and reviews. Rows must arrive in staging scan order: the first
// row seen for a key is kept.
//
// Reviews collapse on (review_id, reviewer_id, business_id, review_date,
// content). Users and businesses collapse on their primary key, so a
// reviewer that appears with two different names keeps the first name.
func Normalize(rows []domain.StagingRecord) domain.Normalized {
	var out domain.Normalized

	seenReview := make(map[reviewKey]struct{}, len(rows))
	seenUser := make(map[string]struct{})
	seenBusiness := make(map[string]struct{})

	for _, r := range rows {
		k := keyOf(r)
		if _, dup := seenReview[k]; dup {
			continue
		}
		seenReview[k] = struct{}{}

		if _, ok := seenUser[r.ReviewerID]; !ok {
			seenUser[r.ReviewerID] = struct{}{}
			out.Users = append(out.Users, r.User())
		}
		if _, ok := seenBusiness[r.BusinessID]; !ok {
			seenBusiness[r.BusinessID] = struct{}{}
			out.Businesses = append(out.Businesses, r.Business())
		}
		out.Reviews = append(out.Reviews, r.Review())
	}
	return out
}
