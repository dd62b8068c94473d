package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner creates and validates signed download tokens for stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token binding the owning memo to the stored file id.
func (s *SignedURLSigner) Generate(memoID, fileID string) (string, time.Time, error) {
	if memoID == "" || fileID == "" {
		return "", time.Time{}, fmt.Errorf("memoID and fileID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedFile := base64.RawURLEncoding.EncodeToString([]byte(fileID))
	token := strings.Join([]string{memoID, ts, encodedFile, s.sign(memoID, ts, encodedFile)}, ".")
	return token, time.Unix(expiresAt.Unix(), 0), nil
}

// Parse validates a token and returns the embedded memo and file identifiers.
func (s *SignedURLSigner) Parse(token string) (memoID, fileID string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidToken
	}
	memoID, ts, encodedFile, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(memoID, ts, encodedFile)), []byte(signature)) {
		return "", "", time.Time{}, ErrInvalidToken
	}
	rawFile, err := base64.RawURLEncoding.DecodeString(encodedFile)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	expiresAt = time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return memoID, string(rawFile), expiresAt, nil
}

func (s *SignedURLSigner) sign(memoID, ts, encodedFile string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(memoID + "|" + ts + "|" + encodedFile))
	return hex.EncodeToString(mac.Sum(nil))
}
