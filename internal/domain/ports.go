package domain

import (
	"context"
	"time"
)

type ReviewRepository interface {
	// Write paths
	AppendStaging(ctx context.Context, rs []StagingRecord) error
	WriteNormalized(ctx context.Context, n Normalized) error
	// InTx runs fn inside one transaction; any error from fn rolls it back.
	InTx(ctx context.Context, fn func(tx UpsertTx) error) error

	// Read paths
	ReadStaging(ctx context.Context) ([]StagingRecord, error)
	ListReviews(ctx context.Context, f ReviewFilter) ([]Review, error)
	CountReviews(ctx context.Context, f ReviewFilter) (int, error)
	GetUser(ctx context.Context, reviewerID string) (User, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
	TableCounts(ctx context.Context) (TableCounts, error)
}

// UpsertTx merges single entities by primary key inside a transaction.
type UpsertTx interface {
	UpsertUser(ctx context.Context, u User) error
	UpsertBusiness(ctx context.Context, b Business) error
	UpsertReview(ctx context.Context, r Review) error
}

// Schema creates the store tables when absent and can drop them again.
type Schema interface {
	Up() error
	Reset() error
}

type RecordSource interface {
	Load(path string, opts LoadOptions) ([]StagingRecord, error)
}

type RunLock interface {
	// Acquire returns ErrLocked when another run holds the lock.
	Acquire(ctx context.Context) (release func(), err error)
}

type LoadOptions struct {
	// Strict requires every vendor column and fails on unparseable dates.
	Strict bool
}

// Read models & queries

// ReviewFilter is ANDed together; nil fields do not filter. Limit 0 means
// no limit.
type ReviewFilter struct {
	BusinessID *string
	ReviewerID *string
	Start, End *time.Time
	MinRating  *int
	MaxRating  *int
	Country    *string // case-insensitive exact match on the reviewer's country
	Limit      int
	Offset     int
}

type ReviewsPage struct {
	Items  []Review
	Total  int
	Limit  int
	Offset int
}

type UserAccount struct {
	User
	ReviewCount int
}

type TableCounts struct {
	StagingReviews int `json:"staging_reviews"`
	Users          int `json:"users"`
	Businesses     int `json:"businesses"`
	Reviews        int `json:"reviews"`
}
