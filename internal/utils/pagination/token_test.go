package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeToken(t *testing.T) {
	createdAt := time.Date(2025, 5, 15, 14, 30, 45, 123456789, time.UTC)

	token := EncodeToken(createdAt, "txn-42")
	assert.NotEmpty(t, token, "Token should not be empty")

	decodedAt, decodedID, err := DecodeToken(token)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(decodedAt), "Created at time should match after decode")
	assert.Equal(t, "txn-42", decodedID)

	// Non-UTC input is normalized.
	local := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("EAT", 3*60*60))
	decodedAt, _, err = DecodeToken(EncodeToken(local, "x"))
	require.NoError(t, err)
	assert.True(t, local.Equal(decodedAt))
}

func TestDecodeTokenError(t *testing.T) {
	_, _, err := DecodeToken("this is not base64!")
	assert.Error(t, err, "Should return an error for invalid base64")
	assert.Contains(t, err.Error(), "base64 decode")

	noSeparator := base64.StdEncoding.EncodeToString([]byte("2025-05-15T00:00:00Z"))
	_, _, err = DecodeToken(noSeparator)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "split")

	badDate := base64.StdEncoding.EncodeToString([]byte("notadate|txn-1"))
	_, _, err = DecodeToken(badDate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "created_at parse")
}

func TestBefore(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	assert.True(t, Before(t0, "b", t1, "a"), "older rows come after the cursor")
	assert.False(t, Before(t1, "a", t0, "b"), "newer rows come before the cursor")
	assert.True(t, Before(t0, "a", t0, "b"), "ties break on id")
	assert.False(t, Before(t0, "b", t0, "b"), "the cursor row itself is excluded")
}
