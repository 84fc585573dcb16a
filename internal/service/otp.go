package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type otpEntry struct {
	code      string
	expiresAt time.Time
}

// OTPStore holds signup verification codes in memory. Codes are keyed
// by lower-cased email, expire after the configured TTL, and are
// single-use. A successful verification marks the email as verified
// for one signup attempt within the same TTL.
type OTPStore struct {
	mu       sync.Mutex
	codes    map[string]otpEntry
	verified map[string]time.Time
	length   int
	ttl      time.Duration
	now      func() time.Time
}

// NewOTPStore builds a store with the given code length and TTL. A nil
// clock defaults to time.Now.
func NewOTPStore(length int, ttl time.Duration, now func() time.Time) *OTPStore {
	if length <= 0 {
		length = 6
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &OTPStore{
		codes:    make(map[string]otpEntry),
		verified: make(map[string]time.Time),
		length:   length,
		ttl:      ttl,
		now:      now,
	}
}

// Issue generates a fresh numeric code for the email, replacing any
// outstanding one.
func (s *OTPStore) Issue(email string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.codes[normalizeEmail(email)] = otpEntry{code: code, expiresAt: s.now().Add(s.ttl)}
	return code, nil
}

// Verify consumes the email's outstanding code. On success the email
// counts as verified for one signup within the TTL.
func (s *OTPStore) Verify(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	key := normalizeEmail(email)
	entry, ok := s.codes[key]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.codes, key)
		return appErrors.Clone(appErrors.ErrValidation, "verification code is expired or was never sent")
	}
	if entry.code != code {
		return appErrors.Clone(appErrors.ErrValidation, "incorrect verification code")
	}

	delete(s.codes, key)
	s.verified[key] = s.now().Add(s.ttl)
	return nil
}

// ConsumeVerified reports whether the email passed verification and
// spends that verification.
func (s *OTPStore) ConsumeVerified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	until, ok := s.verified[key]
	if !ok {
		return false
	}
	delete(s.verified, key)
	return !s.now().After(until)
}

// TTL returns the configured code lifetime.
func (s *OTPStore) TTL() time.Duration {
	return s.ttl
}

func (s *OTPStore) generate() (string, error) {
	digits := make([]byte, s.length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

func (s *OTPStore) purgeLocked() {
	now := s.now()
	for key, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, key)
		}
	}
	for key, until := range s.verified {
		if now.After(until) {
			delete(s.verified, key)
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
