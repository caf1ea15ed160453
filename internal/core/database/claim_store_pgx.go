package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/config"
	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests inject a
// pgxmock pool through the same interface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ClaimStore implements core.ClaimStore on Postgres.
type ClaimStore struct {
	pool Pool
	log  *zap.Logger
}

// NewClaimStore connects a pgx pool, verifies it, and runs the schema
// bootstrap once.
func NewClaimStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ClaimStore, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, eris.New("database: DATABASE_URL is empty")
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "database: parse config")
	}
	pgxCfg.MaxConns = 20
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "database: create pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "database: ping")
	}

	if err := EnsureBootstrapped(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("database initialized and bootstrapped")
	return &ClaimStore{pool: pool, log: log}, nil
}

func (s *ClaimStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *ClaimStore) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return eris.New("database: nil user")
	}
	const q = `
		INSERT INTO users (id, full_name, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err := s.pool.Exec(ctx, q,
		user.ID, user.FullName, user.Email, user.Role, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "database: create user")
	}
	return nil
}

func (s *ClaimStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, full_name, email, role, password_hash, created_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "database: get user by email")
	}
	return &u, nil
}

const claimColumns = `
	id, claim_id, user_id, full_name, email, phone, address, file_url,
	status, ocr_data, review_result, history,
	version, ocr_attempts, review_attempts, last_error, created_at, updated_at`

func (s *ClaimStore) CreateClaim(ctx context.Context, claim *models.Claim) error {
	if claim == nil {
		return eris.New("database: nil claim")
	}
	history, err := json.Marshal(claim.History)
	if err != nil {
		return eris.Wrap(err, "database: marshal history")
	}
	const q = `
		INSERT INTO claims
			(id, claim_id, user_id, full_name, email, phone, address, file_url, status, history, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()), COALESCE($12, now()))
	`
	_, err = s.pool.Exec(ctx, q,
		claim.ID, claim.ClaimID, claim.UserID, claim.FullName, claim.Email,
		claim.Phone, claim.Address, claim.FileURL, claim.Status, history,
		claim.CreatedAt, claim.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "database: create claim")
	}
	return nil
}

func (s *ClaimStore) GetClaimByID(ctx context.Context, id string) (*models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	c, err := scanClaim(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "database: get claim")
	}
	return c, nil
}

func (s *ClaimStore) ListClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, eris.Wrap(err, "database: list claims by user")
	}
	return collectClaims(rows)
}

func (s *ClaimStore) ListClaims(ctx context.Context) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "database: list claims")
	}
	return collectClaims(rows)
}

// SetOCRData writes the extracted field snapshot in one shot. The ocr_data
// IS NULL guard makes redelivered creation events no-ops: a claim never
// receives a second, partially different snapshot.
func (s *ClaimStore) SetOCRData(ctx context.Context, id string, data models.OCRData) (bool, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return false, eris.Wrap(err, "database: marshal ocr data")
	}
	const q = `
		UPDATE claims
		SET ocr_data = $2, version = version + 1, last_error = '', updated_at = now()
		WHERE id = $1 AND ocr_data IS NULL
	`
	tag, err := s.pool.Exec(ctx, q, id, raw)
	if err != nil {
		return false, eris.Wrap(err, "database: set ocr data")
	}
	return tag.RowsAffected() > 0, nil
}

// SetReviewResult records the verdict and the derived status together. The
// guard on status keeps a late automated write from clobbering a claim an
// insurer has already decided, and the review_result IS NULL guard keeps the
// verdict write-once.
func (s *ClaimStore) SetReviewResult(ctx context.Context, id string, result *models.ReviewResult, status models.ClaimStatus) (bool, error) {
	if result == nil {
		return false, eris.New("database: nil review result")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return false, eris.Wrap(err, "database: marshal review result")
	}
	const q = `
		UPDATE claims
		SET review_result = $2, status = $3, version = version + 1, last_error = '', updated_at = now()
		WHERE id = $1 AND review_result IS NULL AND status = 'InReview'
	`
	tag, err := s.pool.Exec(ctx, q, id, raw, status)
	if err != nil {
		return false, eris.Wrap(err, "database: set review result")
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyDecision sets the terminal status and appends the history entry in a
// single UPDATE, so they commit together or not at all. The status guard
// rejects decisions on anything but a Flagged claim.
func (s *ClaimStore) ApplyDecision(ctx context.Context, id string, status models.ClaimStatus, entry models.HistoryEntry) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, eris.Wrap(err, "database: marshal history entry")
	}
	const q = `
		UPDATE claims
		SET status = $2, history = history || $3::jsonb, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'Flagged'
	`
	tag, err := s.pool.Exec(ctx, q, id, status, raw)
	if err != nil {
		return false, eris.Wrap(err, "database: apply decision")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ClaimStore) RecordPipelineFailure(ctx context.Context, id, stage, errText string) error {
	var q string
	switch stage {
	case "ocr":
		q = `UPDATE claims SET ocr_attempts = ocr_attempts + 1, last_error = $2, updated_at = now() WHERE id = $1`
	case "review":
		q = `UPDATE claims SET review_attempts = review_attempts + 1, last_error = $2, updated_at = now() WHERE id = $1`
	default:
		return eris.Errorf("database: unknown pipeline stage %q", stage)
	}
	if _, err := s.pool.Exec(ctx, q, id, errText); err != nil {
		return eris.Wrapf(err, "database: record %s failure", stage)
	}
	return nil
}

func (s *ClaimStore) ListClaimsNeedingOCR(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + `
		FROM claims
		WHERE status = 'InReview' AND ocr_data IS NULL AND ocr_attempts < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, maxAttempts, limit)
	if err != nil {
		return nil, eris.Wrap(err, "database: list claims needing ocr")
	}
	return collectClaims(rows)
}

func (s *ClaimStore) ListClaimsNeedingReview(ctx context.Context, maxAttempts, limit int) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + `
		FROM claims
		WHERE status = 'InReview' AND ocr_data IS NOT NULL AND review_result IS NULL AND review_attempts < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, maxAttempts, limit)
	if err != nil {
		return nil, eris.Wrap(err, "database: list claims needing review")
	}
	return collectClaims(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		c          models.Claim
		ocrRaw     []byte
		reviewRaw  []byte
		historyRaw []byte
	)
	err := row.Scan(
		&c.ID, &c.ClaimID, &c.UserID, &c.FullName, &c.Email, &c.Phone, &c.Address, &c.FileURL,
		&c.Status, &ocrRaw, &reviewRaw, &historyRaw,
		&c.Version, &c.OCRAttempts, &c.ReviewAttempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(ocrRaw) > 0 {
		if err := json.Unmarshal(ocrRaw, &c.OCRData); err != nil {
			return nil, eris.Wrap(err, "database: unmarshal ocr data")
		}
	}
	if len(reviewRaw) > 0 {
		c.ReviewResult = &models.ReviewResult{}
		if err := json.Unmarshal(reviewRaw, c.ReviewResult); err != nil {
			return nil, eris.Wrap(err, "database: unmarshal review result")
		}
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &c.History); err != nil {
			return nil, eris.Wrap(err, "database: unmarshal history")
		}
	}
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]models.Claim, error) {
	defer rows.Close()
	var out []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, eris.Wrap(err, "database: scan claim")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "database: iterate claims")
	}
	return out, nil
}

var _ core.ClaimStore = (*ClaimStore)(nil)
