package services

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	claims    map[string]*models.Claim
	createErr error
}

func newMemStore(claims ...*models.Claim) *memStore {
	s := &memStore{claims: make(map[string]*models.Claim)}
	for _, c := range claims {
		s.claims[c.ID] = c
	}
	return s
}

func (s *memStore) CreateUser(ctx context.Context, u *models.User) error { return nil }
func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}
func (s *memStore) CreateClaim(ctx context.Context, c *models.Claim) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = c
	return nil
}
func (s *memStore) GetClaimByID(ctx context.Context, id string) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}
func (s *memStore) ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Claim
	for _, c := range s.claims {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}
func (s *memStore) ListClaims(ctx context.Context) ([]models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Claim
	for _, c := range s.claims {
		out = append(out, *c)
	}
	return out, nil
}
func (s *memStore) SetOCRData(ctx context.Context, id string, data models.OCRData) (bool, error) {
	return false, nil
}
func (s *memStore) SetReviewResult(ctx context.Context, id string, result *models.ReviewResult, status models.ClaimStatus) (bool, error) {
	return false, nil
}
func (s *memStore) ApplyDecision(ctx context.Context, id string, status models.ClaimStatus, entry models.HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok || c.Status != models.StatusFlagged {
		return false, nil
	}
	c.Status = status
	c.History = append(c.History, entry)
	return true, nil
}
func (s *memStore) RecordPipelineFailure(ctx context.Context, id, stage, errText string) error {
	return nil
}
func (s *memStore) ListClaimsNeedingOCR(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error) {
	return nil, nil
}
func (s *memStore) ListClaimsNeedingReview(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error) {
	return nil, nil
}
func (s *memStore) Close() {}

type memObjects struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	uploadErr error
}

func newMemObjects() *memObjects {
	return &memObjects{uploads: make(map[string][]byte)}
}

func (o *memObjects) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if o.uploadErr != nil {
		return "", o.uploadErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads[key] = data
	return "https://" + bucket + ".s3.us-east-1.amazonaws.com/" + key, nil
}
func (o *memObjects) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	return o.uploads[key], nil
}
func (o *memObjects) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(o.uploads[key]))), nil
}
func (o *memObjects) DeleteFile(ctx context.Context, bucket, key string) error { return nil }

func newTestService(store *memStore, objects *memObjects) *ClaimService {
	svc := NewClaimService(store, objects, "claims-bucket", 3, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return svc
}

func validInput() IntakeInput {
	return IntakeInput{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Phone:    "555-1000",
		Address:  "1 Main St",
	}
}

func pdf(name string) Attachment {
	return Attachment{Filename: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestSubmitClaim_CreatesInReviewClaim(t *testing.T) {
	store := newMemStore()
	objects := newMemObjects()
	svc := newTestService(store, objects)

	claim, err := svc.SubmitClaim(context.Background(), "u1", validInput(), []Attachment{pdf("receipt.pdf")})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInReview, claim.Status)
	assert.Regexp(t, regexp.MustCompile(`^CS-\d{6}-\d{4}$`), claim.ClaimID)
	assert.Empty(t, claim.History, "no audit entry is written at creation")
	assert.Nil(t, claim.OCRData)
	assert.Contains(t, claim.FileURL, "claims/u1/")
	assert.Contains(t, claim.FileURL, "receipt.pdf")

	stored, _ := store.GetClaimByID(context.Background(), claim.ID)
	require.NotNil(t, stored)

	require.Len(t, objects.uploads, 1)
}

func TestSubmitClaim_KeepsOnlyFirstAttachment(t *testing.T) {
	store := newMemStore()
	objects := newMemObjects()
	svc := newTestService(store, objects)

	claim, err := svc.SubmitClaim(context.Background(), "u1", validInput(),
		[]Attachment{pdf("first.pdf"), pdf("second.pdf"), pdf("third.pdf")})
	require.NoError(t, err)

	assert.Contains(t, claim.FileURL, "first.pdf")
	assert.Len(t, objects.uploads, 1, "only the first attachment is stored")
}

func TestSubmitClaim_RejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemStore(), newMemObjects())

	for _, field := range []string{"full_name", "email", "phone", "address"} {
		in := validInput()
		switch field {
		case "full_name":
			in.FullName = "  "
		case "email":
			in.Email = ""
		case "phone":
			in.Phone = ""
		case "address":
			in.Address = "\t"
		}
		_, err := svc.SubmitClaim(context.Background(), "u1", in, []Attachment{pdf("r.pdf")})
		require.Error(t, err, field)
		assert.ErrorIs(t, err, ErrMissingField, field)
	}
}

func TestSubmitClaim_RejectsMissingAttachment(t *testing.T) {
	objects := newMemObjects()
	svc := newTestService(newMemStore(), objects)

	_, err := svc.SubmitClaim(context.Background(), "u1", validInput(), nil)
	assert.ErrorIs(t, err, ErrNoAttachment)

	_, err = svc.SubmitClaim(context.Background(), "u1", validInput(),
		[]Attachment{{Filename: "empty.pdf"}})
	assert.ErrorIs(t, err, ErrNoAttachment)

	assert.Empty(t, objects.uploads, "validation failures never reach storage")
}

func TestSubmitClaim_SanitizesAttachmentPath(t *testing.T) {
	objects := newMemObjects()
	svc := newTestService(newMemStore(), objects)

	_, err := svc.SubmitClaim(context.Background(), "u1", validInput(),
		[]Attachment{pdf("../../etc/passwd")})
	require.NoError(t, err)

	for key := range objects.uploads {
		assert.NotContains(t, key, "..")
		assert.True(t, strings.HasPrefix(key, "claims/u1/"))
	}
}

func TestSubmitClaim_InsertFailureAfterUpload(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("db down")
	objects := newMemObjects()
	svc := newTestService(store, objects)

	_, err := svc.SubmitClaim(context.Background(), "u1", validInput(), []Attachment{pdf("r.pdf")})
	require.Error(t, err)
	assert.Len(t, objects.uploads, 1, "the uploaded blob stays behind when the insert fails")
}

func TestGetClaim_OwnershipEnforced(t *testing.T) {
	claim := &models.Claim{ID: "c1", UserID: "u1", Status: models.StatusInReview}
	svc := newTestService(newMemStore(claim), newMemObjects())

	owner := &models.User{ID: "u1", Role: models.RoleClaimant}
	other := &models.User{ID: "u2", Role: models.RoleClaimant}
	insurer := &models.User{ID: "i1", Role: models.RoleInsurer}

	v, err := svc.GetClaim(context.Background(), "c1", owner)
	require.NoError(t, err)
	assert.Equal(t, "c1", v.ID)

	_, err = svc.GetClaim(context.Background(), "c1", other)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetClaim(context.Background(), "missing", owner)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetClaim(context.Background(), "c1", insurer)
	require.NoError(t, err, "insurers may read any claim")
}

func TestClaimView_ClaimantNeverSeesFlagged(t *testing.T) {
	claim := &models.Claim{
		ID:           "c1",
		UserID:       "u1",
		Status:       models.StatusFlagged,
		ReviewResult: &models.ReviewResult{Label: "Flagged", Explanation: []string{"amount exceeds policy limit"}},
		History: []models.HistoryEntry{
			{Type: "AI Review", Status: models.StatusFlagged},
		},
	}
	svc := newTestService(newMemStore(claim), newMemObjects())

	owner := &models.User{ID: "u1", Role: models.RoleClaimant}
	v, err := svc.GetClaim(context.Background(), "c1", owner)
	require.NoError(t, err)

	assert.Equal(t, "In Review", v.Status)
	assert.Nil(t, v.ReviewResult, "review details are insurer-facing")
	assert.Nil(t, v.History, "history carries true statuses and is insurer-facing")
	assert.False(t, v.Stalled)

	insurer := &models.User{ID: "i1", Role: models.RoleInsurer}
	iv, err := svc.GetClaim(context.Background(), "c1", insurer)
	require.NoError(t, err)
	assert.Equal(t, "Flagged", iv.Status)
	require.NotNil(t, iv.ReviewResult)
	require.Len(t, iv.History, 1)
}

func TestClaimView_StalledSurfacedToInsurer(t *testing.T) {
	claim := &models.Claim{
		ID:          "c1",
		UserID:      "u1",
		Status:      models.StatusInReview,
		OCRAttempts: 3,
	}
	svc := newTestService(newMemStore(claim), newMemObjects())

	insurer := &models.User{ID: "i1", Role: models.RoleInsurer}
	v, err := svc.GetClaim(context.Background(), "c1", insurer)
	require.NoError(t, err)
	assert.True(t, v.Stalled)

	// Below the attempt cap the claim is merely pending, not stalled.
	claim2 := &models.Claim{ID: "c2", UserID: "u1", Status: models.StatusInReview, OCRAttempts: 1}
	svc2 := newTestService(newMemStore(claim2), newMemObjects())
	v2, err := svc2.GetClaim(context.Background(), "c2", insurer)
	require.NoError(t, err)
	assert.False(t, v2.Stalled)
}

func TestDecide_ApprovesFlaggedClaim(t *testing.T) {
	claim := &models.Claim{ID: "c1", UserID: "u1", Status: models.StatusFlagged}
	store := newMemStore(claim)
	svc := newTestService(store, newMemObjects())

	v, err := svc.Decide(context.Background(), "c1", "Approved", "verified by phone")
	require.NoError(t, err)

	assert.Equal(t, "Approved", v.Status)
	require.Len(t, v.History, 1)
	entry := v.History[0]
	assert.Equal(t, "Insurer Decision", entry.Type)
	assert.Equal(t, models.StatusApproved, entry.Status)
	assert.Equal(t, "verified by phone", entry.Comment)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC), entry.Timestamp)

	stored, _ := store.GetClaimByID(context.Background(), "c1")
	assert.Equal(t, models.StatusApproved, stored.Status)
	require.Len(t, stored.History, 1)
}

func TestDecide_DefaultCommentWhenBlank(t *testing.T) {
	claim := &models.Claim{ID: "c1", UserID: "u1", Status: models.StatusFlagged}
	svc := newTestService(newMemStore(claim), newMemObjects())

	v, err := svc.Decide(context.Background(), "c1", "Rejected", "   ")
	require.NoError(t, err)
	require.Len(t, v.History, 1)
	assert.Equal(t, "No comment provided", v.History[0].Comment)
}

func TestDecide_RejectsInvalidDecision(t *testing.T) {
	claim := &models.Claim{ID: "c1", UserID: "u1", Status: models.StatusFlagged}
	svc := newTestService(newMemStore(claim), newMemObjects())

	for _, d := range []string{"Flagged", "InReview", "approved", ""} {
		_, err := svc.Decide(context.Background(), "c1", d, "")
		assert.ErrorIs(t, err, ErrInvalidDecision, d)
	}
}

func TestDecide_RequiresFlaggedStatus(t *testing.T) {
	for _, status := range []models.ClaimStatus{models.StatusInReview, models.StatusApproved, models.StatusRejected} {
		claim := &models.Claim{ID: "c1", UserID: "u1", Status: status}
		svc := newTestService(newMemStore(claim), newMemObjects())

		_, err := svc.Decide(context.Background(), "c1", "Approved", "")
		assert.ErrorIs(t, err, ErrNotFlagged, string(status))
	}
}

func TestDecide_NotFound(t *testing.T) {
	svc := newTestService(newMemStore(), newMemObjects())
	_, err := svc.Decide(context.Background(), "missing", "Approved", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAllClaims_InsurerSeesTrueStatuses(t *testing.T) {
	store := newMemStore(
		&models.Claim{ID: "c1", UserID: "u1", Status: models.StatusFlagged},
		&models.Claim{ID: "c2", UserID: "u2", Status: models.StatusApproved},
	)
	svc := newTestService(store, newMemObjects())

	views, err := svc.ListAllClaims(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	statuses := map[string]string{}
	for _, v := range views {
		statuses[v.ID] = v.Status
	}
	assert.Equal(t, "Flagged", statuses["c1"])
	assert.Equal(t, "Approved", statuses["c2"])
}

func TestListOwnClaims_OnlyViewerClaims(t *testing.T) {
	store := newMemStore(
		&models.Claim{ID: "c1", UserID: "u1", Status: models.StatusInReview},
		&models.Claim{ID: "c2", UserID: "u2", Status: models.StatusInReview},
	)
	svc := newTestService(store, newMemObjects())

	views, err := svc.ListOwnClaims(context.Background(), &models.User{ID: "u1", Role: models.RoleClaimant})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "c1", views[0].ID)
}
