package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"legal_reporting/internal/app"
	"legal_reporting/internal/domain"
)

func seeded(t *testing.T, rows ...domain.StagingRecord) *fakeRepo {
	t.Helper()
	repo := newFakeRepo()
	if err := repo.WriteNormalized(context.Background(), app.Normalize(rows)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo
}

func TestReviewsForBusiness_NotFound(t *testing.T) {
	q := app.NewQueryService(seeded(t, rec("r1", "u1", "b1", "2024-01-01", "x", 4)))

	_, err := q.ReviewsForBusiness(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReviewsForUser_OnlyTheirsNewestFirst(t *testing.T) {
	q := app.NewQueryService(seeded(t,
		rec("r1", "u1", "b1", "2024-01-01", "a", 4),
		rec("r2", "u2", "b1", "2024-01-02", "b", 4),
		rec("r3", "u1", "b2", "2024-03-01", "c", 2),
		rec("r4", "u1", "b2", "2024-02-01", "d", 1),
	))

	rs, err := q.ReviewsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	got := []string{}
	for _, r := range rs {
		if r.ReviewerID != "u1" {
			t.Fatalf("foreign review returned: %+v", r)
		}
		got = append(got, r.ReviewID)
	}
	if fmt.Sprint(got) != "[r3 r4 r1]" {
		t.Fatalf("order: %v", got)
	}
}

func TestSearch_PaginationAndTotal(t *testing.T) {
	var rows []domain.StagingRecord
	for i := 1; i <= 7; i++ {
		rows = append(rows, rec(fmt.Sprintf("r%d", i), "u1", "b1", fmt.Sprintf("2024-01-%02d", i), "x", 3))
	}
	q := app.NewQueryService(seeded(t, rows...))

	cases := []struct{ limit, offset, want int }{
		{3, 0, 3}, {3, 6, 1}, {3, 7, 0}, {10, 0, 7}, {1, 20, 0},
	}
	for _, c := range cases {
		page, err := q.Search(context.Background(), app.ReviewSearch{Limit: ptr(c.limit), Offset: ptr(c.offset)})
		if err != nil {
			t.Fatalf("limit=%d offset=%d: %v", c.limit, c.offset, err)
		}
		if len(page.Items) != c.want {
			t.Fatalf("limit=%d offset=%d: got %d rows want %d", c.limit, c.offset, len(page.Items), c.want)
		}
		if page.Total != 7 {
			t.Fatalf("total must ignore pagination, got %d", page.Total)
		}
	}
}

func TestSearch_Filters(t *testing.T) {
	a := rec("r1", "u1", "b1", "2024-01-10", "a", 5)
	b := rec("r2", "u2", "b1", "2024-02-10", "b", 2)
	b.ReviewerCountry = "France"
	c := rec("r3", "u3", "b2", "2024-03-10", "c", 4)
	q := app.NewQueryService(seeded(t, a, b, c))
	ctx := context.Background()

	page, err := q.Search(ctx, app.ReviewSearch{StartDate: ptr("2024-02-01"), EndDate: ptr("2024-03-10")})
	if err != nil || page.Total != 2 {
		t.Fatalf("date range: total=%d err=%v", page.Total, err)
	}

	page, _ = q.Search(ctx, app.ReviewSearch{MinRating: ptr(4), MaxRating: ptr(5)})
	if page.Total != 2 {
		t.Fatalf("rating range: %d", page.Total)
	}

	page, _ = q.Search(ctx, app.ReviewSearch{Country: ptr("FRANCE")})
	if page.Total != 1 || page.Items[0].ReviewID != "r2" {
		t.Fatalf("country: %+v", page)
	}

	page, err = q.Search(ctx, app.ReviewSearch{MinRating: ptr(5), MaxRating: ptr(1)})
	if err != nil || page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("min>max should be empty without error: %+v %v", page, err)
	}
}

func TestSearch_Validation(t *testing.T) {
	q := app.NewQueryService(newFakeRepo())
	bad := map[string]app.ReviewSearch{
		"start_date": {StartDate: ptr("not-a-date")},
		"end_date":   {EndDate: ptr("2024-13-40")},
		"min_rating": {MinRating: ptr(0)},
		"max_rating": {MaxRating: ptr(6)},
		"limit":      {Limit: ptr(501)},
		"offset":     {Offset: ptr(-1)},
	}
	for field, s := range bad {
		_, err := q.Search(context.Background(), s)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != field {
			t.Fatalf("%s: expected ValidationError, got %v", field, err)
		}
	}
}

func TestSearch_Defaults(t *testing.T) {
	f, err := app.ReviewSearch{}.Filter()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if f.Limit != app.DefaultLimit || f.Offset != 0 {
		t.Fatalf("defaults: %+v", f)
	}
}

func TestUserAccount(t *testing.T) {
	q := app.NewQueryService(seeded(t,
		rec("r1", "u1", "b1", "2024-01-01", "a", 4),
		rec("r2", "u1", "b2", "2024-01-02", "b", 3),
	))

	acc, err := q.UserAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if acc.ReviewCount != 2 || acc.ReviewerName != "name-u1" {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if _, err := q.UserAccount(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBusinesses_RoundTrip(t *testing.T) {
	a := rec("r1", "u1", "b1", "2024-01-01", "a", 4)
	a.BusinessName = "Acme Ltd"
	q := app.NewQueryService(seeded(t, a))

	bs, err := q.Businesses(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(bs) != 1 || bs[0].BusinessName != "Acme Ltd" {
		t.Fatalf("unexpected businesses: %+v", bs)
	}
}
