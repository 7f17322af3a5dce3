package domain

import (
	"encoding/json"
	"time"
)

// AuthenticatedUser is the identity issued by the identity provider.
// A nil *AuthenticatedUser means there is no session.
type AuthenticatedUser struct {
	ID          string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// CachedCredential is the last successful sign-in persisted for a profile.
// Expiry holds the time the credential was stored; the TTL is measured from it.
type CachedCredential struct {
	User   AuthenticatedUser
	Expiry time.Time
}

type cachedCredentialJSON struct {
	Credential struct {
		User AuthenticatedUser `json:"user"`
	} `json:"credential"`
	Expiry int64 `json:"expiry"`
}

// MarshalJSON writes {"credential":{"user":...},"expiry":<unix millis>}.
func (c CachedCredential) MarshalJSON() ([]byte, error) {
	var out cachedCredentialJSON
	out.Credential.User = c.User
	out.Expiry = c.Expiry.UnixMilli()
	return json.Marshal(out)
}

// UnmarshalJSON reads the layout written by MarshalJSON.
func (c *CachedCredential) UnmarshalJSON(data []byte) error {
	var in cachedCredentialJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.User = in.Credential.User
	c.Expiry = time.UnixMilli(in.Expiry).UTC()
	return nil
}

// AuthenticationState is the route guard's view of a session.
type AuthenticationState int

const (
	Pending AuthenticationState = iota
	LoggedIn
	LoggedOut
)

func (s AuthenticationState) String() string {
	switch s {
	case LoggedIn:
		return "LOGGED_IN"
	case LoggedOut:
		return "LOGGED_OUT"
	default:
		return "PENDING"
	}
}
