package domain

import "time"

// StagingRecord is one raw input line as loaded into staging_reviews.
type StagingRecord struct {
	ID               int64 // assigned by the store; zero before the write
	BatchID          string
	ReviewID         string
	ReviewerID       string
	ReviewerName     string
	EmailAddress     string
	ReviewerCountry  string
	BusinessID       string
	BusinessName     string
	BusinessCategory *string // not sourced yet, always nil at ingestion
	ReviewTitle      string
	Content          string
	Rating           int
	ReviewDate       *time.Time // nil when the source value did not parse
	ReviewIPAddress  string
}

type User struct {
	ReviewerID      string
	ReviewerName    string
	EmailAddress    string
	ReviewerCountry string
}

type Business struct {
	BusinessID   string
	BusinessName string
}

type Review struct {
	ReviewID        string
	ReviewerID      string
	BusinessID      string
	ReviewTitle     string
	Content         string
	Rating          int
	ReviewDate      *time.Time
	ReviewIPAddress string
}

// Normalized is the three-way projection of the staging table.
type Normalized struct {
	Users      []User
	Businesses []Business
	Reviews    []Review
}

// User splits the user columns out of a staging row.
func (r StagingRecord) User() User {
	return User{
		ReviewerID:      r.ReviewerID,
		ReviewerName:    r.ReviewerName,
		EmailAddress:    r.EmailAddress,
		ReviewerCountry: r.ReviewerCountry,
	}
}

func (r StagingRecord) Business() Business {
	return Business{BusinessID: r.BusinessID, BusinessName: r.BusinessName}
}

func (r StagingRecord) Review() Review {
	return Review{
		ReviewID:        r.ReviewID,
		ReviewerID:      r.ReviewerID,
		BusinessID:      r.BusinessID,
		ReviewTitle:     r.ReviewTitle,
		Content:         r.Content,
		Rating:          r.Rating,
		ReviewDate:      r.ReviewDate,
		ReviewIPAddress: r.ReviewIPAddress,
	}
}
