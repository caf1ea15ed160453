// Package ocr holds the providers that turn a stored claim document into the
// structured field mapping the rest of the pipeline consumes.
package ocr

import (
	"github.com/rotisserie/eris"

	"github.com/claimsmart/claimsmart-backend/internal/config"
	"github.com/claimsmart/claimsmart-backend/internal/core"
)

// NewProvider creates an OCRProvider based on config.
func NewProvider(cfg *config.Config, obj core.ObjectClient) (core.OCRProvider, error) {
	switch cfg.OCRProvider {
	case "http", "":
		if cfg.OCRAPIURL == "" {
			return nil, eris.New("ocr: http provider requires OCR_API_URL")
		}
		return NewHTTPOCR(cfg.OCRAPIURL), nil
	case "docconv":
		return NewDocconvOCR(obj), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.OCRProvider)
	}
}
