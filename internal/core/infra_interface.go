package core

import (
	"context"
	"io"

	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// ClaimStore defines all persistence operations the services and the
// pipeline need. It abstracts Postgres so higher layers never depend on a
// specific DB, and so tests can run against a mock pool.
type ClaimStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateClaim(ctx context.Context, claim *models.Claim) error
	GetClaimByID(ctx context.Context, id string) (*models.Claim, error)
	ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error)
	ListClaims(ctx context.Context) ([]models.Claim, error)

	// SetOCRData writes the extracted fields onto the claim. The write is
	// conditional on ocr_data still being absent, so a redelivered event is
	// a no-op rather than an overwrite. Returns false when the guard failed.
	SetOCRData(ctx context.Context, id string, data models.OCRData) (bool, error)

	// SetReviewResult writes the verdict and moves the claim out of
	// InReview. Conditional on review_result being absent and status still
	// InReview; a claim an insurer already decided is left untouched.
	SetReviewResult(ctx context.Context, id string, result *models.ReviewResult, status models.ClaimStatus) (bool, error)

	// ApplyDecision atomically sets the terminal status and appends the
	// history entry, guarded on the claim still being Flagged. Status and
	// history commit together or not at all.
	ApplyDecision(ctx context.Context, id string, status models.ClaimStatus, entry models.HistoryEntry) (bool, error)

	// RecordPipelineFailure bumps the attempt counter for a stage ("ocr" or
	// "review") and records the error text on the claim.
	RecordPipelineFailure(ctx context.Context, id, stage, errText string) error

	// ListClaimsNeedingOCR returns claims still waiting on extraction and
	// under the attempt cap; ListClaimsNeedingReview the same for the
	// automated verdict.
	ListClaimsNeedingOCR(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error)
	ListClaimsNeedingReview(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error)

	Close()
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// OCRProvider extracts structured fields from a stored claim document.
type OCRProvider interface {
	ExtractFields(ctx context.Context, fileURL string) (models.OCRData, error)
}

// ReviewProvider classifies extracted claim fields into a verdict.
type ReviewProvider interface {
	Review(ctx context.Context, data models.OCRData) (*models.ReviewResult, error)
}
