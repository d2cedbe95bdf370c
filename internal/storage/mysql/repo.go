package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"legal_reporting/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

// valDate truncates to the calendar day for DATE columns.
func valDate(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format("2006-01-02")
}

func ptrTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

// MySQL error numbers that mean the row itself was rejected.
var constraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1264: true, // out of range value
	1366: true, // incorrect value for column
	1406: true, // data too long
	1451: true, // row is referenced by a foreign key
	1452: true, // foreign key parent missing
}

// classify wraps constraint violations as domain.IntegrityError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *driver.MySQLError
	if errors.As(err, &me) && constraintErrors[me.Number] {
		return &domain.IntegrityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type Repo struct {
	db        *sqlx.DB
	batchSize int
}

// MySQL rejects statements with more than 65535 placeholders; staging rows
// are the widest tuple.
const (
	maxPlaceholders = 65535
	stagingColumns  = 14
	MaxBatchSize    = maxPlaceholders / stagingColumns
)

func New(db *sqlx.DB, batchSize int) *Repo {
	return &Repo{db: db, batchSize: clampBatch(batchSize)}
}

func clampBatch(n int) int {
	switch {
	case n <= 0:
		return 500
	case n > MaxBatchSize:
		return MaxBatchSize
	}
	return n
}

// execBatches sends n rows as multi-row INSERTs of at most batch tuples.
func execBatches(ctx context.Context, ex sqlx.ExecerContext, prefix, tuple, suffix string, n, batch int, args func(i int) []any) error {
	for start := 0; start < n; start += batch {
		end := start + batch
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		var params []any
		for i := start; i < end; i++ {
			values = append(values, tuple)
			params = append(params, args(i)...)
		}
		if _, err := ex.ExecContext(ctx, prefix+strings.Join(values, ",")+suffix, params...); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendStaging writes every record or none of them.
func (r *Repo) AppendStaging(ctx context.Context, rs []domain.StagingRecord) error {
	if len(rs) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		err := execBatches(ctx, tx, insertStagingPrefix, stagingTuple, "", len(rs), r.batchSize, func(i int) []any {
			s := rs[i]
			return []any{
				s.BatchID, s.ReviewID, s.ReviewerID, s.ReviewerName, s.EmailAddress, s.ReviewerCountry,
				s.BusinessID, s.BusinessName, valStr(s.BusinessCategory), s.ReviewTitle, s.Content, s.Rating,
				valDate(s.ReviewDate), s.ReviewIPAddress,
			}
		})
		return classify("append staging", err)
	})
}

// WriteNormalized merges the projections by primary key in one transaction,
// parents first.
func (r *Repo) WriteNormalized(ctx context.Context, n domain.Normalized) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := upsertUsers(ctx, tx, n.Users, r.batchSize); err != nil {
			return err
		}
		if err := upsertBusinesses(ctx, tx, n.Businesses, r.batchSize); err != nil {
			return err
		}
		return upsertReviews(ctx, tx, n.Reviews, r.batchSize)
	})
}

func upsertUsers(ctx context.Context, ex sqlx.ExecerContext, us []domain.User, batch int) error {
	err := execBatches(ctx, ex, upsertUsersPrefix, userTuple, upsertUsersOnDup, len(us), batch, func(i int) []any {
		u := us[i]
		return []any{u.ReviewerID, u.ReviewerName, u.EmailAddress, u.ReviewerCountry}
	})
	return classify("upsert users", err)
}

func upsertBusinesses(ctx context.Context, ex sqlx.ExecerContext, bs []domain.Business, batch int) error {
	err := execBatches(ctx, ex, upsertBusinessesPrefix, businessTuple, upsertBusinessesOnDup, len(bs), batch, func(i int) []any {
		return []any{bs[i].BusinessID, bs[i].BusinessName}
	})
	return classify("upsert businesses", err)
}

func upsertReviews(ctx context.Context, ex sqlx.ExecerContext, rs []domain.Review, batch int) error {
	err := execBatches(ctx, ex, upsertReviewsPrefix, reviewTuple, upsertReviewsOnDup, len(rs), batch, func(i int) []any {
		rv := rs[i]
		return []any{
			rv.ReviewID, rv.ReviewerID, rv.BusinessID, rv.ReviewTitle, rv.Content,
			rv.Rating, valTime(rv.ReviewDate), rv.ReviewIPAddress,
		}
	})
	return classify("upsert reviews", err)
}

// txUpserter merges one entity per statement inside an open transaction.
type txUpserter struct{ tx *sqlx.Tx }

func (t txUpserter) UpsertUser(ctx context.Context, u domain.User) error {
	return upsertUsers(ctx, t.tx, []domain.User{u}, 1)
}

func (t txUpserter) UpsertBusiness(ctx context.Context, b domain.Business) error {
	return upsertBusinesses(ctx, t.tx, []domain.Business{b}, 1)
}

func (t txUpserter) UpsertReview(ctx context.Context, rv domain.Review) error {
	return upsertReviews(ctx, t.tx, []domain.Review{rv}, 1)
}

func (r *Repo) InTx(ctx context.Context, fn func(tx domain.UpsertTx) error) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error { return fn(txUpserter{tx: tx}) })
}

type stagingRow struct {
	ID               int64          `db:"id"`
	BatchID          sql.NullString `db:"batch_id"`
	ReviewID         sql.NullString `db:"review_id"`
	ReviewerID       sql.NullString `db:"reviewer_id"`
	ReviewerName     sql.NullString `db:"reviewer_name"`
	EmailAddress     sql.NullString `db:"email_address"`
	ReviewerCountry  sql.NullString `db:"reviewer_country"`
	BusinessID       sql.NullString `db:"business_id"`
	BusinessName     sql.NullString `db:"business_name"`
	BusinessCategory sql.NullString `db:"business_category"`
	ReviewTitle      sql.NullString `db:"review_title"`
	Content          sql.NullString `db:"content"`
	Rating           sql.NullInt64  `db:"rating"`
	ReviewDate       sql.NullTime   `db:"review_date"`
	ReviewIPAddress  sql.NullString `db:"review_ip_address"`
}

func (s stagingRow) record() domain.StagingRecord {
	rec := domain.StagingRecord{
		ID:              s.ID,
		BatchID:         s.BatchID.String,
		ReviewID:        s.ReviewID.String,
		ReviewerID:      s.ReviewerID.String,
		ReviewerName:    s.ReviewerName.String,
		EmailAddress:    s.EmailAddress.String,
		ReviewerCountry: s.ReviewerCountry.String,
		BusinessID:      s.BusinessID.String,
		BusinessName:    s.BusinessName.String,
		ReviewTitle:     s.ReviewTitle.String,
		Content:         s.Content.String,
		Rating:          int(s.Rating.Int64),
		ReviewDate:      ptrTime(s.ReviewDate),
		ReviewIPAddress: s.ReviewIPAddress.String,
	}
	if s.BusinessCategory.Valid {
		c := s.BusinessCategory.String
		rec.BusinessCategory = &c
	}
	return rec
}

func (r *Repo) ReadStaging(ctx context.Context) ([]domain.StagingRecord, error) {
	var rows []stagingRow
	if err := r.db.SelectContext(ctx, &rows, readStagingSQL); err != nil {
		return nil, fmt.Errorf("read staging: %w", err)
	}
	out := make([]domain.StagingRecord, 0, len(rows))
	for _, s := range rows {
		out = append(out, s.record())
	}
	return out, nil
}

type reviewRow struct {
	ReviewID        string       `db:"review_id"`
	ReviewerID      string       `db:"reviewer_id"`
	BusinessID      string       `db:"business_id"`
	ReviewTitle     string       `db:"review_title"`
	Content         string       `db:"content"`
	Rating          int          `db:"rating"`
	ReviewDate      sql.NullTime `db:"review_date"`
	ReviewIPAddress string       `db:"review_ip_address"`
}

// where renders the filter as a join clause, a WHERE clause and its args.
func where(f domain.ReviewFilter) (join, clause string, args []any) {
	var conds []string
	if f.BusinessID != nil {
		conds = append(conds, "r.business_id = ?")
		args = append(args, *f.BusinessID)
	}
	if f.ReviewerID != nil {
		conds = append(conds, "r.reviewer_id = ?")
		args = append(args, *f.ReviewerID)
	}
	if f.Start != nil {
		conds = append(conds, "r.review_date >= ?")
		args = append(args, f.Start.UTC())
	}
	if f.End != nil {
		conds = append(conds, "r.review_date <= ?")
		args = append(args, f.End.UTC())
	}
	if f.MinRating != nil {
		conds = append(conds, "r.rating >= ?")
		args = append(args, *f.MinRating)
	}
	if f.MaxRating != nil {
		conds = append(conds, "r.rating <= ?")
		args = append(args, *f.MaxRating)
	}
	if f.Country != nil {
		join = joinUsersSQL
		conds = append(conds, "LOWER(u.reviewer_country) = LOWER(?)")
		args = append(args, *f.Country)
	}
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}
	return join, clause, args
}

func (r *Repo) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	join, clause, args := where(f)
	q := selectReviewsSQL + join + clause + orderReviewsSQL
	switch {
	case f.Limit > 0:
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	case f.Offset > 0:
		// MySQL has no OFFSET without LIMIT
		q += " LIMIT 18446744073709551615 OFFSET ?"
		args = append(args, f.Offset)
	}

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]domain.Review, 0, len(rows))
	for _, rw := range rows {
		out = append(out, domain.Review{
			ReviewID:        rw.ReviewID,
			ReviewerID:      rw.ReviewerID,
			BusinessID:      rw.BusinessID,
			ReviewTitle:     rw.ReviewTitle,
			Content:         rw.Content,
			Rating:          rw.Rating,
			ReviewDate:      ptrTime(rw.ReviewDate),
			ReviewIPAddress: rw.ReviewIPAddress,
		})
	}
	return out, nil
}

// CountReviews counts the filtered set; Limit and Offset are ignored.
func (r *Repo) CountReviews(ctx context.Context, f domain.ReviewFilter) (int, error) {
	join, clause, args := where(f)
	var n int
	if err := r.db.GetContext(ctx, &n, countReviewsSQL+join+clause, args...); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}

type userRow struct {
	ReviewerID      string `db:"reviewer_id"`
	ReviewerName    string `db:"reviewer_name"`
	EmailAddress    string `db:"email_address"`
	ReviewerCountry string `db:"reviewer_country"`
}

func (r *Repo) GetUser(ctx context.Context, reviewerID string) (domain.User, error) {
	var u userRow
	if err := r.db.GetContext(ctx, &u, getUserSQL, reviewerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return domain.User(u), nil
}

type businessRow struct {
	BusinessID   string `db:"business_id"`
	BusinessName string `db:"business_name"`
}

func (r *Repo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	var rows []businessRow
	if err := r.db.SelectContext(ctx, &rows, listBusinessesSQL); err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	out := make([]domain.Business, 0, len(rows))
	for _, b := range rows {
		out = append(out, domain.Business(b))
	}
	return out, nil
}

type countsRow struct {
	StagingReviews int `db:"staging_reviews"`
	Users          int `db:"users"`
	Businesses     int `db:"businesses"`
	Reviews        int `db:"reviews"`
}

func (r *Repo) TableCounts(ctx context.Context) (domain.TableCounts, error) {
	var c countsRow
	if err := r.db.GetContext(ctx, &c, tableCountsSQL); err != nil {
		return domain.TableCounts{}, fmt.Errorf("table counts: %w", err)
	}
	return domain.TableCounts(c), nil
}
