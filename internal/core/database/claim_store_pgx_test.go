package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// newMockStore creates a ClaimStore backed by pgxmock for unit testing.
func newMockStore(t *testing.T) (*ClaimStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &ClaimStore{pool: mock, log: zap.NewNop()}, mock
}

var claimRowColumns = []string{
	"id", "claim_id", "user_id", "full_name", "email", "phone", "address", "file_url",
	"status", "ocr_data", "review_result", "history",
	"version", "ocr_attempts", "review_attempts", "last_error", "created_at", "updated_at",
}

func TestClaimStore_GetClaimByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM claims WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetClaimByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_GetClaimByID_DecodesJSONColumns(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT .* FROM claims WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(claimRowColumns).AddRow(
			"c1", "CS-123456-2026", "u1", "Jane Doe", "jane@x.com", "555-1000", "1 Main St", "https://b.s3.r.amazonaws.com/k",
			models.StatusFlagged,
			[]byte(`{"Diagnosis":"Fracture","Claimed Amount":12500}`),
			[]byte(`{"label":"Flagged","explanation":["amount exceeds policy limit"]}`),
			[]byte(`[{"type":"AI Review","status":"Flagged","timestamp":"2026-03-14T09:26:53Z"}]`),
			3, 1, 1, "", now, now,
		))

	c, err := s.GetClaimByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, models.StatusFlagged, c.Status)
	assert.Equal(t, "Fracture", c.OCRData.Field("Diagnosis"))
	require.NotNil(t, c.ReviewResult)
	assert.Equal(t, "Flagged", c.ReviewResult.Label)
	assert.Equal(t, []string{"amount exceeds policy limit"}, c.ReviewResult.Explanation)
	require.Len(t, c.History, 1)
	assert.Equal(t, "AI Review", c.History[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_SetOCRData_Applied(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE claims\s+SET ocr_data = \$2.*WHERE id = \$1 AND ocr_data IS NULL`).
		WithArgs("c1", []byte(`{"Diagnosis":"Fracture"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := s.SetOCRData(context.Background(), "c1", models.OCRData{"Diagnosis": "Fracture"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_SetOCRData_RedeliveryIsNoOp(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE claims\s+SET ocr_data = \$2.*WHERE id = \$1 AND ocr_data IS NULL`).
		WithArgs("c1", []byte(`{"Diagnosis":"Fracture"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := s.SetOCRData(context.Background(), "c1", models.OCRData{"Diagnosis": "Fracture"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_SetReviewResult_GuardedOnInReview(t *testing.T) {
	s, mock := newMockStore(t)
	result := &models.ReviewResult{Label: "Flagged", Explanation: []string{"amount exceeds policy limit"}}

	mock.ExpectExec(`(?s)UPDATE claims\s+SET review_result = \$2, status = \$3.*WHERE id = \$1 AND review_result IS NULL AND status = 'InReview'`).
		WithArgs("c1", []byte(`{"label":"Flagged","explanation":["amount exceeds policy limit"]}`), models.StatusFlagged).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := s.SetReviewResult(context.Background(), "c1", result, models.StatusFlagged)
	require.NoError(t, err)
	assert.False(t, applied, "a decided claim must not be clobbered by a late review")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_ApplyDecision_AtomicStatusAndHistory(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.HistoryEntry{
		Type:      "Insurer Decision",
		Status:    models.StatusApproved,
		Comment:   "verified by phone",
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`(?s)UPDATE claims\s+SET status = \$2, history = history \|\| \$3::jsonb.*WHERE id = \$1 AND status = 'Flagged'`).
		WithArgs("c1", models.StatusApproved, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := s.ApplyDecision(context.Background(), "c1", models.StatusApproved, entry)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_ApplyDecision_RejectedWhenNotFlagged(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE claims\s+SET status = \$2, history = history \|\| \$3::jsonb.*WHERE id = \$1 AND status = 'Flagged'`).
		WithArgs("c1", models.StatusRejected, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := s.ApplyDecision(context.Background(), "c1", models.StatusRejected, models.HistoryEntry{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStore_RecordPipelineFailure_UnknownStage(t *testing.T) {
	s, _ := newMockStore(t)

	err := s.RecordPipelineFailure(context.Background(), "c1", "fraud-check", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pipeline stage")
}

func TestClaimStore_ListClaimsNeedingOCR(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`WHERE status = 'InReview' AND ocr_data IS NULL AND ocr_attempts < \$1`).
		WithArgs(3, 32).
		WillReturnRows(pgxmock.NewRows(claimRowColumns).AddRow(
			"c1", "CS-000001-2026", "u1", "Jane Doe", "jane@x.com", "555-1000", "1 Main St", "https://b.s3.r.amazonaws.com/k",
			models.StatusInReview, nil, nil, []byte(`[]`),
			1, 0, 0, "", now, now,
		))

	claims, err := s.ListClaimsNeedingOCR(context.Background(), 3, 32)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, models.StatusInReview, claims[0].Status)
	assert.Nil(t, claims[0].OCRData)
	assert.NoError(t, mock.ExpectationsWereMet())
}
