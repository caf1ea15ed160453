package objectclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURL(t *testing.T) {
	bucket, key := ParseObjectURL("https://claimsmart-docs.s3.us-east-2.amazonaws.com/claims/u1/1741940813000_receipt.pdf")
	assert.Equal(t, "claimsmart-docs", bucket)
	assert.Equal(t, "claims/u1/1741940813000_receipt.pdf", key)
}

// A downloaded body stays tied to its request context, so cancellation must
// not fire until the reader is closed. A streamed multi-chunk body read
// under an already-cancelled context dies with "context canceled" after the
// first buffered chunk.
func TestCancelReadCloser_ContextLivesUntilClose(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 4<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	rc := &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}

	body, err := io.ReadAll(rc)
	require.NoError(t, err, "the full body must be readable before Close")
	assert.Len(t, body, len(payload))

	require.NoError(t, rc.Close())
	assert.Error(t, ctx.Err(), "Close releases the download context")
}

func TestParseObjectURL_NoKey(t *testing.T) {
	bucket, key := ParseObjectURL("https://claimsmart-docs.s3.us-east-2.amazonaws.com")
	assert.Equal(t, "claimsmart-docs", bucket)
	assert.Empty(t, key)
}
