package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"

	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour

	tokenIssuer = "vahana"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the JWT payload. The subject carries the user id.
type TokenClaims struct {
	UserID uint      `json:"-"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is handed out on login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// now is swapped in tests
var now = time.Now

func GenerateToken(userID uint, kind TokenKind, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token generation")
	}
	issued := now()
	claims := TokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IssuePair creates a fresh access and refresh token for a user.
func IssuePair(userID uint, secret string) (*TokenPair, error) {
	access, err := GenerateToken(userID, AccessToken, AccessTokenTTL, secret)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateToken(userID, RefreshToken, RefreshTokenTTL, secret)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyToken checks signature, expiry and that the token is of the wanted kind.
func VerifyToken(token string, kind TokenKind, secret string) (*TokenClaims, error) {
	if secret == "" {
		return nil, errors.New("secret is required for token verification")
	}
	var claims TokenClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: subject", ErrInvalidToken)
	}
	claims.UserID = uint(id)
	return &claims, nil
}
