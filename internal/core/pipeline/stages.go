package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/claimsmart/claimsmart-backend/internal/models"
	"github.com/claimsmart/claimsmart-backend/internal/resilience"
)

func (p *Pipeline) processOne(ctx context.Context, j job, worker int) {
	// Fresh timeout per job; a hung external call must not wedge the worker
	// past it.
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	log := p.log.With(
		zap.String("claim", j.claimID),
		zap.String("stage", string(j.stage)),
		zap.Int("worker", worker),
	)

	claim, err := p.store.GetClaimByID(jobCtx, j.claimID)
	if err != nil {
		log.Error("pipeline: load claim", zap.Error(err))
		return
	}
	if claim == nil {
		log.Warn("pipeline: claim vanished")
		return
	}

	switch j.stage {
	case StageOCR:
		p.runOCR(jobCtx, claim, log)
	case StageReview:
		p.runReview(jobCtx, claim, log)
	}
}

// runOCR enriches a newly created claim with the extracted field snapshot.
func (p *Pipeline) runOCR(ctx context.Context, claim *models.Claim, log *zap.Logger) {
	// Re-check the guard: the poll list may be stale by the time the job
	// reaches a worker.
	if claim.OCRData != nil || claim.Status != models.StatusInReview {
		return
	}
	if claim.FileURL == "" {
		// Not fatal for the pipeline, but this claim can never progress
		// without manual intervention.
		log.Warn("pipeline: claim has no file url, skipping ocr")
		return
	}

	var data models.OCRData
	err := resilience.Do(ctx, p.retryConfig(), func(ctx context.Context) error {
		var callErr error
		data, callErr = p.ocr.ExtractFields(ctx, claim.FileURL)
		return callErr
	})
	if err != nil {
		log.Error("pipeline: ocr extraction failed", zap.Error(err), zap.Int("attempts", claim.OCRAttempts+1))
		if rerr := p.store.RecordPipelineFailure(ctx, claim.ID, "ocr", err.Error()); rerr != nil {
			log.Error("pipeline: record ocr failure", zap.Error(rerr))
		}
		if claim.OCRAttempts+1 >= p.cfg.MaxAttempts {
			log.Warn("pipeline: claim stalled in ocr stage, manual intervention required")
		}
		return
	}

	applied, err := p.store.SetOCRData(ctx, claim.ID, data)
	if err != nil {
		log.Error("pipeline: persist ocr data", zap.Error(err))
		return
	}
	if !applied {
		// Another delivery won the race; the snapshot already present stands.
		log.Debug("pipeline: ocr data already present, skipped write")
		return
	}
	log.Info("pipeline: ocr data saved", zap.Int("fields", len(data)))
}

// runReview classifies an OCR-enriched claim and moves it to the verdict
// status.
func (p *Pipeline) runReview(ctx context.Context, claim *models.Claim, log *zap.Logger) {
	if claim.OCRData == nil || claim.ReviewResult != nil || claim.Status != models.StatusInReview {
		return
	}

	var result *models.ReviewResult
	err := resilience.Do(ctx, p.retryConfig(), func(ctx context.Context) error {
		var callErr error
		result, callErr = p.review.Review(ctx, claim.OCRData)
		return callErr
	})
	if err == nil {
		// An unknown label is a provider failure, not a status.
		if _, perr := models.ParseReviewLabel(result.Label); perr != nil {
			err = perr
		}
	}
	if err != nil {
		log.Error("pipeline: review failed", zap.Error(err), zap.Int("attempts", claim.ReviewAttempts+1))
		if rerr := p.store.RecordPipelineFailure(ctx, claim.ID, "review", err.Error()); rerr != nil {
			log.Error("pipeline: record review failure", zap.Error(rerr))
		}
		if claim.ReviewAttempts+1 >= p.cfg.MaxAttempts {
			log.Warn("pipeline: claim stalled in review stage, manual intervention required")
		}
		return
	}

	status, _ := models.ParseReviewLabel(result.Label)
	applied, err := p.store.SetReviewResult(ctx, claim.ID, result, status)
	if err != nil {
		log.Error("pipeline: persist review result", zap.Error(err))
		return
	}
	if !applied {
		// Claim left InReview (insurer decided, or a concurrent review won).
		log.Debug("pipeline: review write skipped, claim no longer in review")
		return
	}
	log.Info("pipeline: review verdict saved", zap.String("label", result.Label))
}
