package security

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	pair, err := IssuePair(42, "s3cret")
	require.NoError(t, err)

	claims, err := VerifyToken(pair.Access, AccessToken, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	claims, err = VerifyToken(pair.Refresh, RefreshToken, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, claims.Kind)
}

func TestVerifyToken_Rejects(t *testing.T) {
	pair, err := IssuePair(1, "s3cret")
	require.NoError(t, err)

	_, err = VerifyToken(pair.Refresh, AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token used as access token")

	_, err = VerifyToken(pair.Access, AccessToken, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyToken("garbage", AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateToken(1, AccessToken, time.Hour, "")
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	token, err := GenerateToken(7, AccessToken, time.Minute, "s3cret")
	require.NoError(t, err)

	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = VerifyToken(token, AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyToken_RejectsForeignTokens(t *testing.T) {
	claims := TokenClaims{
		Kind: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(9),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = VerifyToken(hs512, AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken, "unexpected signing method")

	claims.Issuer = "someone-else"
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = VerifyToken(other, AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken, "issuer mismatch")

	claims.Issuer = tokenIssuer
	claims.ExpiresAt = nil
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = VerifyToken(noExp, AccessToken, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken, "missing exp")
}
