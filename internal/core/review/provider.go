// Package review holds the providers that classify an OCR-enriched claim
// into a verdict label with supporting reasons.
package review

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/claimsmart/claimsmart-backend/internal/config"
	"github.com/claimsmart/claimsmart-backend/internal/core"
)

// NewProvider creates a ReviewProvider based on config.
func NewProvider(ctx context.Context, cfg *config.Config) (core.ReviewProvider, error) {
	switch cfg.ReviewProvider {
	case "http", "":
		if cfg.ReviewAPIURL == "" {
			return nil, eris.New("review: http provider requires REVIEW_API_URL")
		}
		return NewHTTPReview(cfg.ReviewAPIURL), nil
	case "gemini":
		if cfg.AIAPIKey == "" {
			return nil, eris.New("review: gemini provider requires GEMINI_API_KEY")
		}
		return NewGeminiReview(ctx, cfg.AIAPIKey, cfg.GenModel)
	default:
		return nil, eris.Errorf("review: unknown provider %q", cfg.ReviewProvider)
	}
}
