package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPRoundTrip(t *testing.T) {
	store := NewOTPStore(6, 10*time.Minute, nil)

	code, err := store.Issue("User@College.EDU")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	// Email lookup is case-insensitive.
	require.NoError(t, store.Verify("user@college.edu", code))
	assert.True(t, store.ConsumeVerified("USER@college.edu"))
}

func TestOTPSingleUse(t *testing.T) {
	store := NewOTPStore(6, 10*time.Minute, nil)

	code, err := store.Issue("user@college.edu")
	require.NoError(t, err)
	require.NoError(t, store.Verify("user@college.edu", code))

	err = store.Verify("user@college.edu", code)
	assert.Error(t, err)

	assert.True(t, store.ConsumeVerified("user@college.edu"))
	assert.False(t, store.ConsumeVerified("user@college.edu"))
}

func TestOTPWrongCode(t *testing.T) {
	store := NewOTPStore(6, 10*time.Minute, nil)

	code, err := store.Issue("user@college.edu")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.Error(t, store.Verify("user@college.edu", wrong))
	assert.False(t, store.ConsumeVerified("user@college.edu"))

	// The right code still works after a failed attempt.
	require.NoError(t, store.Verify("user@college.edu", code))
}

func TestOTPExpiry(t *testing.T) {
	current := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	store := NewOTPStore(6, 10*time.Minute, func() time.Time { return current })

	code, err := store.Issue("user@college.edu")
	require.NoError(t, err)

	current = current.Add(11 * time.Minute)
	err = store.Verify("user@college.edu", code)
	assert.Error(t, err)
}

func TestOTPReissueReplacesCode(t *testing.T) {
	store := NewOTPStore(6, 10*time.Minute, nil)

	first, err := store.Issue("user@college.edu")
	require.NoError(t, err)
	second, err := store.Issue("user@college.edu")
	require.NoError(t, err)

	if first != second {
		assert.Error(t, store.Verify("user@college.edu", first))
	}
	require.NoError(t, store.Verify("user@college.edu", second))
}
