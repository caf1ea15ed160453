package ocr

import (
	"bytes"
	"context"
	"strings"

	"code.sajari.com/docconv"
	"github.com/rotisserie/eris"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/core/objectclient"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

// DocconvOCR is a local fallback when the hosted OCR API is unavailable. It
// pulls the attachment from object storage, extracts text with docconv, and
// parses "Field: value" lines into the same mapping shape the API returns.
type DocconvOCR struct {
	obj core.ObjectClient
}

func NewDocconvOCR(obj core.ObjectClient) *DocconvOCR {
	return &DocconvOCR{obj: obj}
}

func (o *DocconvOCR) ExtractFields(ctx context.Context, fileURL string) (models.OCRData, error) {
	bucket, key := objectclient.ParseObjectURL(fileURL)
	if bucket == "" || key == "" {
		return nil, eris.Errorf("ocr: cannot parse object url %q", fileURL)
	}

	raw, err := o.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: fetch attachment")
	}

	res, err := docconv.Convert(bytes.NewReader(raw), docconv.MimeTypeByExtension(key), true)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: convert document")
	}

	data := ParseFieldLines(res.Body)
	if len(data) == 0 {
		return nil, eris.New("ocr: no labeled fields found in document")
	}
	return data, nil
}

// ParseFieldLines extracts "Label: value" pairs from document text. Lines
// without a colon, or with an empty side, are skipped.
func ParseFieldLines(text string) models.OCRData {
	data := models.OCRData{}
	for _, line := range strings.Split(text, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		data[k] = v
	}
	return data
}

var _ core.OCRProvider = (*DocconvOCR)(nil)
