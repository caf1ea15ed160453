package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// Sentinel errors the handlers translate into HTTP statuses.
var (
	ErrMissingField    = eris.New("claims: required field missing")
	ErrNoAttachment    = eris.New("claims: an attachment is required")
	ErrNotFound        = eris.New("claims: claim not found")
	ErrForbidden       = eris.New("claims: not allowed")
	ErrInvalidDecision = eris.New("claims: decision must be Approved or Rejected")
	ErrNotFlagged      = eris.New("claims: only a flagged claim can be decided")
)

// IntakeInput is the claimant-supplied form portion of a submission.
type IntakeInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// Attachment is one uploaded file. Intake keeps only the first one offered.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ClaimView is a claim prepared for one viewer. The status is already
// display-mapped; review details and audit history are insurer-facing and
// omitted from claimant views so the true Flagged state never leaks.
type ClaimView struct {
	ID       string `json:"id"`
	ClaimID  string `json:"claim_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	FileURL  string `json:"file_url"`

	Status  string         `json:"status"`
	OCRData models.OCRData `json:"ocr_data,omitempty"`

	ReviewResult *models.ReviewResult  `json:"review_result,omitempty"`
	History      []models.HistoryEntry `json:"history,omitempty"`
	Stalled      bool                  `json:"stalled,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ClaimService owns intake, claim reads and the insurer decision flow.
type ClaimService struct {
	store       core.ClaimStore
	storage     core.ObjectClient
	bucket      string
	maxAttempts int
	log         *zap.Logger
	now         func() time.Time
}

func NewClaimService(store core.ClaimStore, storage core.ObjectClient, bucket string, maxAttempts int, log *zap.Logger) *ClaimService {
	return &ClaimService{
		store:       store,
		storage:     storage,
		bucket:      bucket,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// SubmitClaim validates the form, stores exactly one attachment, and creates
// the initial claim record in InReview. Validation failures happen before
// any write. If the record insert fails after the upload succeeded, the blob
// is orphaned; that is logged and accepted.
func (s *ClaimService) SubmitClaim(ctx context.Context, userID string, in IntakeInput, files []Attachment) (*models.Claim, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	for name, v := range map[string]string{
		"full_name": in.FullName,
		"email":     in.Email,
		"phone":     in.Phone,
		"address":   in.Address,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, eris.Wrap(ErrMissingField, name)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoAttachment
	}
	// Single-attachment policy: only the first file offered is retained.
	file := files[0]
	if len(file.Data) == 0 {
		return nil, ErrNoAttachment
	}

	now := s.now()
	cleanName := filepath.Base(file.Filename)
	key := fmt.Sprintf("claims/%s/%d_%s", userID, now.UnixMilli(), cleanName)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.storage.UploadFile(ctx, s.bucket, key, file.Data, contentType)
	if err != nil {
		return nil, eris.Wrap(err, "claims: upload attachment")
	}

	claim := &models.Claim{
		ID:        uuid.NewString(),
		ClaimID:   models.NewClaimID(now),
		UserID:    userID,
		FullName:  strings.TrimSpace(in.FullName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		FileURL:   url,
		Status:    models.StatusInReview,
		History:   []models.HistoryEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateClaim(ctx, claim); err != nil {
		// The uploaded blob has no referencing record now. No compensating
		// delete; flag it loudly instead.
		s.log.Error("claims: record insert failed after upload, blob orphaned",
			zap.String("key", key), zap.Error(err))
		return nil, eris.Wrap(err, "claims: create record")
	}

	s.log.Info("claim submitted",
		zap.String("claim", claim.ID), zap.String("claim_ref", claim.ClaimID))
	return claim, nil
}

// GetClaim returns one claim prepared for the viewer. Claimants may only see
// their own claims.
func (s *ClaimService) GetClaim(ctx context.Context, id string, viewer *models.User) (*ClaimView, error) {
	claim, err := s.store.GetClaimByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, ErrNotFound
	}
	if viewer.Role != models.RoleInsurer && claim.UserID != viewer.ID {
		return nil, ErrForbidden
	}
	v := s.view(claim, viewer.Role)
	return &v, nil
}

// ListOwnClaims returns the claimant's claims, display-mapped.
func (s *ClaimService) ListOwnClaims(ctx context.Context, viewer *models.User) ([]ClaimView, error) {
	claims, err := s.store.ListClaimsByUser(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	return s.views(claims, viewer.Role), nil
}

// ListAllClaims returns every claim with true statuses for the insurer
// dashboard.
func (s *ClaimService) ListAllClaims(ctx context.Context) ([]ClaimView, error) {
	claims, err := s.store.ListClaims(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(claims, models.RoleInsurer), nil
}

// Decide applies a human terminal verdict to a flagged claim. Status and the
// audit entry commit atomically; on any failure the claim is unchanged.
func (s *ClaimService) Decide(ctx context.Context, id, decision, comment string) (*ClaimView, error) {
	status := models.ClaimStatus(decision)
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, ErrInvalidDecision
	}

	claim, err := s.store.GetClaimByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, ErrNotFound
	}
	if !models.CanTransition(claim.Status, status, models.ActorInsurer) {
		return nil, ErrNotFlagged
	}

	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = "No comment provided"
	}
	entry := models.HistoryEntry{
		Type:      "Insurer Decision",
		Status:    status,
		Comment:   comment,
		Timestamp: s.now(),
	}

	applied, err := s.store.ApplyDecision(ctx, id, status, entry)
	if err != nil {
		return nil, eris.Wrap(err, "claims: apply decision")
	}
	if !applied {
		// The claim left Flagged between the read and the write.
		return nil, ErrNotFlagged
	}

	s.log.Info("insurer decision applied",
		zap.String("claim", id), zap.String("decision", string(status)))

	claim.Status = status
	claim.History = append(claim.History, entry)
	v := s.view(claim, models.RoleInsurer)
	return &v, nil
}

func (s *ClaimService) views(claims []models.Claim, viewer models.Role) []ClaimView {
	out := make([]ClaimView, 0, len(claims))
	for i := range claims {
		out = append(out, s.view(&claims[i], viewer))
	}
	return out
}

func (s *ClaimService) view(c *models.Claim, viewer models.Role) ClaimView {
	v := ClaimView{
		ID:        c.ID,
		ClaimID:   c.ClaimID,
		FullName:  c.FullName,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		FileURL:   c.FileURL,
		Status:    models.DisplayStatus(c.Status, viewer),
		OCRData:   c.OCRData,
		CreatedAt: c.CreatedAt,
	}
	if viewer == models.RoleInsurer {
		v.ReviewResult = c.ReviewResult
		v.History = c.History
		v.Stalled = s.stalled(c)
	}
	return v
}

// stalled reports whether the pipeline has given up on this claim: still
// missing data for a stage whose attempt budget is spent.
func (s *ClaimService) stalled(c *models.Claim) bool {
	if c.Status != models.StatusInReview {
		return false
	}
	if c.OCRData == nil {
		return c.OCRAttempts >= s.maxAttempts
	}
	if c.ReviewResult == nil {
		return c.ReviewAttempts >= s.maxAttempts
	}
	return false
}
