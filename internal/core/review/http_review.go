package review

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// HTTPReview calls the external classification API with the extracted fields
// and returns its verdict verbatim. Label validation happens downstream.
type HTTPReview struct {
	endpoint string
	client   *http.Client
}

func NewHTTPReview(endpoint string) *HTTPReview {
	return &HTTPReview{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *HTTPReview) Review(ctx context.Context, data models.OCRData) (*models.ReviewResult, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "review: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "review: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "review: API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "review: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("review: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result models.ReviewResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "review: unmarshal response")
	}
	if result.Label == "" {
		return nil, eris.New("review: response missing label")
	}
	return &result, nil
}

var _ core.ReviewProvider = (*HTTPReview)(nil)
