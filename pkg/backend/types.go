package backend

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/productdesk/pkg/auth"
)

// AuthChangeEvent names a transition pushed to auth-state listeners.
type AuthChangeEvent string

const (
	EventSignedIn       AuthChangeEvent = "SIGNED_IN"
	EventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
)

// User is the authenticated identity.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the credential set issued by the auth service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// Expiry returns the absolute expiry, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the session is expired or will be within margin.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(margin).Before(exp)
}

// normalize fills expiry and user from the access token when the response omitted them.
func (s *Session) normalize(secret string, now time.Time) error {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.User != nil && s.User.ID != uuid.Nil && s.ExpiresAt != 0 {
		return nil
	}

	claims, err := auth.ParseAccessToken(secret, s.AccessToken)
	if err != nil {
		return err
	}
	if s.ExpiresAt == 0 {
		if exp := claims.Expiry(); !exp.IsZero() {
			s.ExpiresAt = exp.Unix()
		}
	}
	if s.User == nil || s.User.ID == uuid.Nil {
		id, err := claims.UserID()
		if err != nil {
			return err
		}
		s.User = &User{ID: id, Email: claims.Email}
	}
	return nil
}

// Credentials are the email/password pair used by sign-up and sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) normalized() Credentials {
	return Credentials{Email: strings.TrimSpace(c.Email), Password: c.Password}
}

// AuthResponse carries what sign-up and sign-in returned. Session is nil when sign-up is
// waiting for e-mail confirmation.
type AuthResponse struct {
	User    *User
	Session *Session
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(e.Code + " request failed")
}
