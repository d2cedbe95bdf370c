// Package csvexport renders query results as downloadable CSV.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/jszwec/csvutil"

	"legal_reporting/internal/domain"
)

type ReviewRow struct {
	ReviewID        string `csv:"review_id"`
	ReviewerID      string `csv:"reviewer_id"`
	BusinessID      string `csv:"business_id"`
	ReviewTitle     string `csv:"review_title"`
	Content         string `csv:"content"`
	Rating          int    `csv:"rating"`
	ReviewDate      string `csv:"review_date"`
	ReviewIPAddress string `csv:"review_ip_address"`
}

type UserAccountRow struct {
	ReviewerID      string `csv:"reviewer_id"`
	ReviewerName    string `csv:"reviewer_name"`
	EmailAddress    string `csv:"email_address"`
	ReviewerCountry string `csv:"reviewer_country"`
	NumberOfReviews int    `csv:"number_of_reviews"`
}

// FormatDate renders RFC 3339 in UTC; nil becomes an empty field.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func Reviews(rs []domain.Review) []ReviewRow {
	out := make([]ReviewRow, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReviewRow{
			ReviewID:        r.ReviewID,
			ReviewerID:      r.ReviewerID,
			BusinessID:      r.BusinessID,
			ReviewTitle:     r.ReviewTitle,
			Content:         r.Content,
			Rating:          r.Rating,
			ReviewDate:      FormatDate(r.ReviewDate),
			ReviewIPAddress: r.ReviewIPAddress,
		})
	}
	return out
}

func UserAccount(a domain.UserAccount) []UserAccountRow {
	return []UserAccountRow{{
		ReviewerID:      a.ReviewerID,
		ReviewerName:    a.ReviewerName,
		EmailAddress:    a.EmailAddress,
		ReviewerCountry: a.ReviewerCountry,
		NumberOfReviews: a.ReviewCount,
	}}
}

// Encode writes a header line followed by one line per row. The header is
// written even when rows is empty.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(cw)
	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Attach sends an encoded body as a downloadable file.
func Attach(w http.ResponseWriter, filename string, body []byte) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(body)
	return err
}
