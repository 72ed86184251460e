package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), "aula")
	userID := uuid.New()

	raw, err := m.Issue(userID, time.Hour)
	require.NoError(t, err)

	got, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenManager_Rejects(t *testing.T) {
	userID := uuid.New()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := NewTokenManager([]byte("test-secret"), "aula")
	m.now = func() time.Time { return issued }
	valid, err := m.Issue(userID, time.Hour)
	require.NoError(t, err)

	expired := NewTokenManager([]byte("test-secret"), "aula")
	expired.now = func() time.Time { return issued.Add(2 * time.Hour) }

	otherSecret := NewTokenManager([]byte("other-secret"), "aula")
	otherSecret.now = m.now

	otherIssuer := NewTokenManager([]byte("test-secret"), "someone-else")
	otherIssuer.now = m.now

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    "aula",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: userID.String(),
		Issuer:  "aula",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{"expired", expired, valid},
		{"wrong secret", otherSecret, valid},
		{"wrong issuer", otherIssuer, valid},
		{"alg none", m, noneToken},
		{"subject not uuid", m, badSubject},
		{"missing expiry", m, noExpiry},
		{"garbage", m, "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.manager.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestUserIDContext(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	_, ok = GetUserID(SetUserID(context.Background(), uuid.Nil))
	assert.False(t, ok)

	id := uuid.New()
	got, ok := GetUserID(SetUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
