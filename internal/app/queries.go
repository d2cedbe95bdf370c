package app

import (
	"context"
	"strings"
	"time"

	"legal_reporting/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
	MinRating    = 1
	MaxRating    = 5
)

// dateLayouts accepted by the search filters; a bare date is midnight UTC.
var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339}

type QueryService struct {
	repo domain.ReviewRepository
}

func NewQueryService(r domain.ReviewRepository) *QueryService {
	return &QueryService{repo: r}
}

// ReviewSearch carries the raw search parameters; nil means absent.
type ReviewSearch struct {
	StartDate, EndDate *string
	MinRating          *int
	MaxRating          *int
	Country            *string
	Limit              *int
	Offset             *int
}

// ReviewsForBusiness returns every review of the business, newest first.
func (s *QueryService) ReviewsForBusiness(ctx context.Context, businessID string) ([]domain.Review, error) {
	return s.nonEmpty(ctx, domain.ReviewFilter{BusinessID: &businessID})
}

// ReviewsForUser returns every review written by the reviewer, newest first.
func (s *QueryService) ReviewsForUser(ctx context.Context, reviewerID string) ([]domain.Review, error) {
	return s.nonEmpty(ctx, domain.ReviewFilter{ReviewerID: &reviewerID})
}

func (s *QueryService) nonEmpty(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	rs, err := s.repo.ListReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, domain.ErrNotFound
	}
	return rs, nil
}

// Search validates q, then returns one page of matching reviews together
// with the size of the whole filtered set.
func (s *QueryService) Search(ctx context.Context, q ReviewSearch) (domain.ReviewsPage, error) {
	f, err := q.Filter()
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	total, err := s.repo.CountReviews(ctx, f)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	items, err := s.repo.ListReviews(ctx, f)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Filter validates the parameters and converts them into a store filter.
func (q ReviewSearch) Filter() (domain.ReviewFilter, error) {
	f := domain.ReviewFilter{Limit: DefaultLimit}

	var err error
	if f.Start, err = parseDate("start_date", q.StartDate); err != nil {
		return f, err
	}
	if f.End, err = parseDate("end_date", q.EndDate); err != nil {
		return f, err
	}
	if err := ratingInRange("min_rating", q.MinRating); err != nil {
		return f, err
	}
	if err := ratingInRange("max_rating", q.MaxRating); err != nil {
		return f, err
	}
	f.MinRating, f.MaxRating = q.MinRating, q.MaxRating

	if q.Country != nil && strings.TrimSpace(*q.Country) != "" {
		c := *q.Country
		f.Country = &c
	}
	if q.Limit != nil {
		if *q.Limit < 1 || *q.Limit > MaxLimit {
			return f, domain.Invalid("limit", "must be between 1 and %d", MaxLimit)
		}
		f.Limit = *q.Limit
	}
	if q.Offset != nil {
		if *q.Offset < 0 {
			return f, domain.Invalid("offset", "must be zero or greater")
		}
		f.Offset = *q.Offset
	}
	return f, nil
}

func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, domain.Invalid(field, "invalid date format '%s', expected YYYY-MM-DD", *v)
}

func ratingInRange(field string, v *int) error {
	if v != nil && (*v < MinRating || *v > MaxRating) {
		return domain.Invalid(field, "must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

// UserAccount returns the user profile with the number of reviews written.
func (s *QueryService) UserAccount(ctx context.Context, reviewerID string) (domain.UserAccount, error) {
	u, err := s.repo.GetUser(ctx, reviewerID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	n, err := s.repo.CountReviews(ctx, domain.ReviewFilter{ReviewerID: &reviewerID})
	if err != nil {
		return domain.UserAccount{}, err
	}
	return domain.UserAccount{User: u, ReviewCount: n}, nil
}

func (s *QueryService) Businesses(ctx context.Context) ([]domain.Business, error) {
	return s.repo.ListBusinesses(ctx)
}

func (s *QueryService) Stats(ctx context.Context) (domain.TableCounts, error) {
	return s.repo.TableCounts(ctx)
}
