package ocr

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

// HTTPOCR calls the external OCR API. The request carries the attachment
// URL; the response is a free-form field mapping stored verbatim.
type HTTPOCR struct {
	endpoint string
	client   *http.Client
}

func NewHTTPOCR(endpoint string) *HTTPOCR {
	return &HTTPOCR{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type extractRequest struct {
	FileURL string `json:"fileUrl"`
}

func (o *HTTPOCR) ExtractFields(ctx context.Context, fileURL string) (models.OCRData, error) {
	body, err := json.Marshal(extractRequest{FileURL: fileURL})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ocr: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var data models.OCRData
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal response")
	}
	if len(data) == 0 {
		return nil, eris.New("ocr: empty extraction result")
	}
	return data, nil
}

var _ core.OCRProvider = (*HTTPOCR)(nil)
