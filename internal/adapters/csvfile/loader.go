// Package csvfile reads vendor review exports into staging records.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"legal_reporting/internal/domain"
)

// vendorHeaders maps export column titles to canonical field names.
var vendorHeaders = map[string]string{
	"Review Id":         "review_id",
	"Reviewer Id":       "reviewer_id",
	"Reviewer Name":     "reviewer_name",
	"Email Address":     "email_address",
	"Reviewer Country":  "reviewer_country",
	"Business Id":       "business_id",
	"Business Name":     "business_name",
	"Review Title":      "review_title",
	"Review Content":    "content",
	"Review Rating":     "rating",
	"Review Date":       "review_date",
	"Review IP Address": "review_ip_address",
}

var (
	lenientRequired = []string{"rating", "review_date"}
	strictRequired  = []string{
		"review_id", "reviewer_id", "reviewer_name", "email_address", "reviewer_country",
		"business_id", "business_name", "review_title", "content", "rating",
		"review_date", "review_ip_address",
	}
)

var errNotInteger = errors.New("not an integer")

// dateLayouts are tried in order; values without a zone are taken as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"2 Jan 2006",
	"January 2, 2006",
}

type rawRecord struct {
	ReviewID        string `csv:"review_id"`
	ReviewerID      string `csv:"reviewer_id"`
	ReviewerName    string `csv:"reviewer_name"`
	EmailAddress    string `csv:"email_address"`
	ReviewerCountry string `csv:"reviewer_country"`
	BusinessID      string `csv:"business_id"`
	BusinessName    string `csv:"business_name"`
	ReviewTitle     string `csv:"review_title"`
	Content         string `csv:"content"`
	Rating          string `csv:"rating"`
	ReviewDate      string `csv:"review_date"`
	ReviewIPAddress string `csv:"review_ip_address"`
}

type Loader struct{}

func New() *Loader { return &Loader{} }

// Load reads the whole file at path. A missing file yields an error wrapping
// fs.ErrNotExist.
func (l *Loader) Load(path string, opts domain.LoadOptions) ([]domain.StagingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("csv file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses an export from r. Dates that fail to parse become nil unless
// opts.Strict is set; a non-integer rating always fails the whole read.
func Read(r io.Reader, opts domain.LoadOptions) ([]domain.StagingRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header = CanonicalHeader(header)

	required := lenientRequired
	if opts.Strict {
		required = strictRequired
	}
	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, fmt.Errorf("csv is missing required columns: %s", strings.Join(missing, ", "))
	}

	// short rows are padded with empty fields; long rows still fail
	cr.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(padded{r: cr, n: len(header)}, header...)
	if err != nil {
		return nil, fmt.Errorf("csv decoder: %w", err)
	}

	var out []domain.StagingRecord
	for row := 1; ; row++ {
		var raw rawRecord
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rec, err := coerce(raw, row, opts.Strict)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// padded extends records shorter than the header with empty fields.
type padded struct {
	r *csv.Reader
	n int
}

func (p padded) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) > p.n {
		line, _ := p.r.FieldPos(0)
		return nil, fmt.Errorf("record on line %d: %d fields, header has %d", line, len(rec), p.n)
	}
	for len(rec) < p.n {
		rec = append(rec, "")
	}
	return rec, nil
}

// CanonicalHeader trims each title and renames known vendor titles.
// Unknown titles are kept (trimmed) and ignored by the decoder.
func CanonicalHeader(in []string) []string {
	out := make([]string, len(in))
	for i, h := range in {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if c, ok := vendorHeaders[h]; ok {
			h = c
		}
		out[i] = h
	}
	return out
}

func missingColumns(header, required []string) []string {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

func coerce(raw rawRecord, row int, strict bool) (domain.StagingRecord, error) {
	rating, err := ParseRating(raw.Rating)
	if err != nil {
		return domain.StagingRecord{}, &domain.LoadError{Row: row, Column: "rating", Value: raw.Rating, Err: err}
	}

	date, err := ParseDate(raw.ReviewDate)
	if err != nil {
		if strict {
			return domain.StagingRecord{}, &domain.LoadError{Row: row, Column: "review_date", Value: raw.ReviewDate, Err: err}
		}
		date = nil
	}

	return domain.StagingRecord{
		ReviewID:        raw.ReviewID,
		ReviewerID:      raw.ReviewerID,
		ReviewerName:    raw.ReviewerName,
		EmailAddress:    raw.EmailAddress,
		ReviewerCountry: raw.ReviewerCountry,
		BusinessID:      raw.BusinessID,
		BusinessName:    raw.BusinessName,
		ReviewTitle:     raw.ReviewTitle,
		Content:         raw.Content,
		Rating:          rating,
		ReviewDate:      date,
		ReviewIPAddress: raw.ReviewIPAddress,
	}, nil
}

// ParseRating accepts integers and integral floats such as "4.0".
func ParseRating(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty rating")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotInteger
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errNotInteger
	}
	return int(f), nil
}

// ParseDate returns the instant in UTC. An empty value is a nil date, not an error.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}
