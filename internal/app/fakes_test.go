package app_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"legal_reporting/internal/domain"
)

// ---- fakes ----

// fakeRepo is an in-memory store with primary/foreign key checks.
type fakeRepo struct {
	staging    []domain.StagingRecord
	users      map[string]domain.User
	businesses map[string]domain.Business
	reviews    map[string]domain.Review
	order      []string // review ids in insertion order

	failReview string // UpsertReview fails for this review id
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      map[string]domain.User{},
		businesses: map[string]domain.Business{},
		reviews:    map[string]domain.Review{},
	}
}

func (f *fakeRepo) AppendStaging(ctx context.Context, rs []domain.StagingRecord) error {
	for _, r := range rs {
		r.ID = int64(len(f.staging) + 1)
		f.staging = append(f.staging, r)
	}
	return nil
}

func (f *fakeRepo) ReadStaging(ctx context.Context) ([]domain.StagingRecord, error) {
	return append([]domain.StagingRecord(nil), f.staging...), nil
}

func (f *fakeRepo) WriteNormalized(ctx context.Context, n domain.Normalized) error {
	return f.InTx(ctx, func(tx domain.UpsertTx) error {
		for _, u := range n.Users {
			if err := tx.UpsertUser(ctx, u); err != nil {
				return err
			}
		}
		for _, b := range n.Businesses {
			if err := tx.UpsertBusiness(ctx, b); err != nil {
				return err
			}
		}
		for _, r := range n.Reviews {
			if err := tx.UpsertReview(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(tx domain.UpsertTx) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		*f = snap
		return err
	}
	return nil
}

func (f *fakeRepo) snapshot() fakeRepo {
	s := fakeRepo{
		staging:    append([]domain.StagingRecord(nil), f.staging...),
		users:      map[string]domain.User{},
		businesses: map[string]domain.Business{},
		reviews:    map[string]domain.Review{},
		order:      append([]string(nil), f.order...),
		failReview: f.failReview,
	}
	for k, v := range f.users {
		s.users[k] = v
	}
	for k, v := range f.businesses {
		s.businesses[k] = v
	}
	for k, v := range f.reviews {
		s.reviews[k] = v
	}
	return s
}

func (f *fakeRepo) UpsertUser(ctx context.Context, u domain.User) error {
	f.users[u.ReviewerID] = u
	return nil
}

func (f *fakeRepo) UpsertBusiness(ctx context.Context, b domain.Business) error {
	f.businesses[b.BusinessID] = b
	return nil
}

func (f *fakeRepo) UpsertReview(ctx context.Context, r domain.Review) error {
	if r.ReviewID == f.failReview {
		return &domain.IntegrityError{Op: "upsert review", Err: errors.New("constraint failed")}
	}
	if _, ok := f.users[r.ReviewerID]; !ok {
		return &domain.IntegrityError{Op: "upsert review", Err: errors.New("missing user")}
	}
	if _, ok := f.businesses[r.BusinessID]; !ok {
		return &domain.IntegrityError{Op: "upsert review", Err: errors.New("missing business")}
	}
	if _, ok := f.reviews[r.ReviewID]; !ok {
		f.order = append(f.order, r.ReviewID)
	}
	f.reviews[r.ReviewID] = r
	return nil
}

func (f *fakeRepo) match(r domain.Review, q domain.ReviewFilter) bool {
	if q.BusinessID != nil && r.BusinessID != *q.BusinessID {
		return false
	}
	if q.ReviewerID != nil && r.ReviewerID != *q.ReviewerID {
		return false
	}
	if q.Start != nil && (r.ReviewDate == nil || r.ReviewDate.Before(*q.Start)) {
		return false
	}
	if q.End != nil && (r.ReviewDate == nil || r.ReviewDate.After(*q.End)) {
		return false
	}
	if q.MinRating != nil && r.Rating < *q.MinRating {
		return false
	}
	if q.MaxRating != nil && r.Rating > *q.MaxRating {
		return false
	}
	if q.Country != nil {
		u, ok := f.users[r.ReviewerID]
		if !ok || !strings.EqualFold(u.ReviewerCountry, *q.Country) {
			return false
		}
	}
	return true
}

func (f *fakeRepo) filtered(q domain.ReviewFilter) []domain.Review {
	var out []domain.Review
	for _, id := range f.order {
		if r := f.reviews[id]; f.match(r, q) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ReviewDate, out[j].ReviewDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return out
}

func (f *fakeRepo) ListReviews(ctx context.Context, q domain.ReviewFilter) ([]domain.Review, error) {
	out := f.filtered(q)
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeRepo) CountReviews(ctx context.Context, q domain.ReviewFilter) (int, error) {
	return len(f.filtered(q)), nil
}

func (f *fakeRepo) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	out := make([]domain.Business, 0, len(f.businesses))
	for _, b := range f.businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessID < out[j].BusinessID })
	return out, nil
}

func (f *fakeRepo) TableCounts(ctx context.Context) (domain.TableCounts, error) {
	return domain.TableCounts{
		StagingReviews: len(f.staging),
		Users:          len(f.users),
		Businesses:     len(f.businesses),
		Reviews:        len(f.reviews),
	}, nil
}

type fakeSchema struct{ ups, resets int }

func (s *fakeSchema) Up() error    { s.ups++; return nil }
func (s *fakeSchema) Reset() error { s.resets++; return nil }

// fakeSource returns canned records keyed by path.
type fakeSource struct {
	files map[string][]domain.StagingRecord
	err   error
	opts  []domain.LoadOptions
}

func (s *fakeSource) Load(path string, opts domain.LoadOptions) ([]domain.StagingRecord, error) {
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return nil, s.err
	}
	recs, ok := s.files[path]
	if !ok {
		return nil, errors.New("csv file not found: " + path)
	}
	return append([]domain.StagingRecord(nil), recs...), nil
}

type fakeLock struct {
	held     bool
	acquired int
}

func (l *fakeLock) Acquire(ctx context.Context) (func(), error) {
	if l.held {
		return nil, domain.ErrLocked
	}
	l.held = true
	l.acquired++
	return func() { l.held = false }, nil
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func rec(reviewID, reviewerID, businessID, date, content string, rating int) domain.StagingRecord {
	r := domain.StagingRecord{
		ReviewID:        reviewID,
		ReviewerID:      reviewerID,
		ReviewerName:    "name-" + reviewerID,
		EmailAddress:    reviewerID + "@example.com",
		ReviewerCountry: "GB",
		BusinessID:      businessID,
		BusinessName:    "biz-" + businessID,
		ReviewTitle:     "title-" + reviewID,
		Content:         content,
		Rating:          rating,
		ReviewIPAddress: "10.0.0.1",
	}
	if date != "" {
		r.ReviewDate = day(date)
	}
	return r
}
