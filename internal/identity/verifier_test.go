package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderdesk/internal/domain"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-identity-secret-32-chars"

func newTestJWTVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(JWTConfig{Secret: testSecret, Issuer: "orderdesk-dev"})
	require.NoError(t, err)
	return v
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := newTestJWTVerifier(t)
	token, err := v.Issue(domain.AuthenticatedUser{ID: "u1", Email: "a@b.com", DisplayName: "Ann"}, time.Minute)
	require.NoError(t, err)

	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &domain.AuthenticatedUser{ID: "u1", Email: "a@b.com", DisplayName: "Ann"}, user)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := newTestJWTVerifier(t)

	expired, err := v.Issue(domain.AuthenticatedUser{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewJWTVerifier(JWTConfig{Secret: "another-secret-that-is-32-chars-long!!", Issuer: "orderdesk-dev"})
	require.NoError(t, err)
	forged, err := other.Issue(domain.AuthenticatedUser{ID: "u1"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := v.Issue(domain.AuthenticatedUser{}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{Secret: "short"})
	assert.Error(t, err)
}

type stubFirebase struct {
	token *auth.Token
	err   error
}

func (s stubFirebase) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return s.token, s.err
}

func TestFirebaseVerifier_Verify(t *testing.T) {
	v := &FirebaseVerifier{client: stubFirebase{token: &auth.Token{
		UID:    " u1 ",
		Claims: map[string]interface{}{"email": "a@b.com", "name": "Ann"},
	}}}
	user, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, "Ann", user.DisplayName)
}

func TestFirebaseVerifier_Errors(t *testing.T) {
	_, err := (&FirebaseVerifier{client: stubFirebase{}}).Verify(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = (&FirebaseVerifier{client: stubFirebase{err: errors.New("expired")}}).Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = (&FirebaseVerifier{client: stubFirebase{token: &auth.Token{}}}).Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
