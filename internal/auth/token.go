package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of tokens issued without an explicit TTL.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by API bearer tokens. The subject is the
// user's UUID.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager creates a token manager. issuer is optional; when set,
// verification requires a matching iss claim.
func NewTokenManager(secret []byte, issuer string) *TokenManager {
	return &TokenManager{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token for userID valid for ttl.
func (m *TokenManager) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the user ID in its subject.
func (m *TokenManager) Verify(raw string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return id, nil
}
