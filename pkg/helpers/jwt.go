package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/federation/enterprise/internal/domain/entity"
)

// Token kinds. Both are signed with the same secret; the token_type claim is
// what stops a month-long refresh token from being replayed where a
// one-minute access token was expected.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed, tampered, and expired tokens; the
	// claims of such a token are never inspected.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrWrongTokenKind means the signature checked out but the token_type
	// claim did not match what the call site required.
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// JWTManager signs and verifies both token kinds. Constructed once at process
// start and injected wherever tokens are issued or checked.
type JWTManager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// Claims is the payload for both token kinds: the public identity fields plus
// the kind discriminator. The password hash never appears here.
type Claims struct {
	UserID    string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token. The user must be
// Contactable; the capability check runs before any signing work.
func (m *JWTManager) GenerateAccessToken(u *entity.User) (string, time.Time, error) {
	return m.generate(u, TokenTypeAccess, m.AccessTTL)
}

// GenerateRefreshToken signs a long-lived refresh token for the same claims.
func (m *JWTManager) GenerateRefreshToken(u *entity.User) (string, time.Time, error) {
	return m.generate(u, TokenTypeRefresh, m.RefreshTTL)
}

func (m *JWTManager) generate(u *entity.User, tokenType string, ttl time.Duration) (string, time.Time, error) {
	if !u.IsContactable() {
		return "", time.Time{}, entity.ErrNotContactable
	}

	now := time.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return s, exp, nil
}

// ParseAccessToken verifies tokenStr as an access token and reconstructs the
// user from its claims.
func (m *JWTManager) ParseAccessToken(tokenStr string) (*entity.User, error) {
	return m.parse(tokenStr, TokenTypeAccess)
}

// ParseRefreshToken verifies tokenStr as a refresh token.
func (m *JWTManager) ParseRefreshToken(tokenStr string) (*entity.User, error) {
	return m.parse(tokenStr, TokenTypeRefresh)
}

// parse checks signature and expiry first, then the kind discriminator, and
// only then trusts the claims. The returned user carries exactly the fields
// the token claimed.
func (m *JWTManager) parse(tokenStr, expectedType string) (*entity.User, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !tkn.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("%w: %s presented where %s was required", ErrWrongTokenKind, claims.TokenType, expectedType)
	}
	return entity.NewUser(entity.Properties{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
	}), nil
}
