package models

import (
	"fmt"
	"time"
)

// Role distinguishes the two kinds of users the portal serves.
type Role string

const (
	RoleClaimant Role = "claimant"
	RoleInsurer  Role = "insurer"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Role         Role      `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// OCRData is the field mapping returned by the OCR service, stored verbatim.
// Keys are domain strings such as "Diagnosis" or "Claimed Amount"; values may
// be strings or numbers depending on the extractor.
type OCRData map[string]any

// Field returns the value for key rendered as a string, or "N/A" when the
// extractor did not produce it.
func (d OCRData) Field(key string) string {
	if d == nil {
		return "N/A"
	}
	v, ok := d[key]
	if !ok || v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%v", v)
}

// ReviewResult is the verdict produced by the automated review service.
type ReviewResult struct {
	Label       string   `json:"label"`
	Explanation []string `json:"explanation"`
}

// HistoryEntry is an immutable audit record of a status-changing event.
// Entries are appended to a claim's history and never edited or removed.
type HistoryEntry struct {
	Type        string      `json:"type"`
	Status      ClaimStatus `json:"status"`
	Comment     string      `json:"comment,omitempty"`
	Explanation []string    `json:"explanation,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Claim is the central record tracked through intake, enrichment and decision.
type Claim struct {
	ID      string `db:"id" json:"id"`
	ClaimID string `db:"claim_id" json:"claim_id"`
	UserID  string `db:"user_id" json:"user_id"`

	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Phone    string `db:"phone" json:"phone"`
	Address  string `db:"address" json:"address"`
	FileURL  string `db:"file_url" json:"file_url"`

	Status       ClaimStatus    `db:"status" json:"status"`
	OCRData      OCRData        `db:"ocr_data" json:"ocr_data,omitempty"`
	ReviewResult *ReviewResult  `db:"review_result" json:"review_result,omitempty"`
	History      []HistoryEntry `db:"history" json:"history"`

	// Pipeline bookkeeping. Attempt counters and the last error are kept on
	// the claim itself so a stalled pipeline is visible in the data, not just
	// in logs.
	Version        int    `db:"version" json:"-"`
	OCRAttempts    int    `db:"ocr_attempts" json:"-"`
	ReviewAttempts int    `db:"review_attempts" json:"-"`
	LastError      string `db:"last_error" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewClaimID generates the human-readable claim reference shown to users,
// e.g. "CS-837201-2026". It is derived from the submission time (last six
// digits of the unix-millisecond clock plus the year), so it is not
// guaranteed globally unique; the store key is.
func NewClaimID(t time.Time) string {
	ms := t.UnixMilli() % 1_000_000
	return fmt.Sprintf("CS-%06d-%04d", ms, t.Year())
}
