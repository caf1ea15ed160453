package models

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClaimID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^CS-\d{6}-\d{4}$`)

	now := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	id := NewClaimID(now)
	assert.Regexp(t, pattern, id)
	assert.Equal(t, fmt.Sprintf("CS-%06d-2026", now.UnixMilli()%1_000_000), id)

	// Small millisecond remainders are zero-padded to keep the width stable.
	early := time.Unix(0, int64(42*time.Millisecond)).UTC()
	assert.Regexp(t, pattern, NewClaimID(early))
}

func TestOCRData_Field(t *testing.T) {
	data := OCRData{
		"Diagnosis":      "Fracture",
		"Claimed Amount": 12500,
		"Empty":          nil,
	}

	assert.Equal(t, "Fracture", data.Field("Diagnosis"))
	assert.Equal(t, "12500", data.Field("Claimed Amount"))
	assert.Equal(t, "N/A", data.Field("Empty"))
	assert.Equal(t, "N/A", data.Field("Date of Treatment"))

	var missing OCRData
	assert.Equal(t, "N/A", missing.Field("Diagnosis"))
}
