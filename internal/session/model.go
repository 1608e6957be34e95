// Package session keeps server-side login sessions in Redis.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Session is the server-side record behind a session cookie.
type Session struct {
	ID          string    `json:"-"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewToken returns an opaque, URL-safe session token with 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
