package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secretKey = "testJwtKey"

func TestVerifyTokenCorrect(t *testing.T) {
	j := New(secretKey)

	tests := []struct {
		name    string
		payload Payload
	}{
		{"access", AccessToken{UserId: "u-1", Role: "user"}},
		{"refresh", RefreshToken{UserId: "u-1"}},
		{"email verification", EmailVerificationToken{UserId: "u-1"}},
		{"password reset", PasswordResetToken{UserId: "u-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := j.NewToken(tt.payload, time.Minute)
			require.NoError(t, err)

			payload, err := j.VerifyToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	j := New(secretKey)
	token, err := j.NewToken(RefreshToken{UserId: "u-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = j.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "we shouldn't verify expired token")
}

func TestVerifyTokenInvalidSecretKey(t *testing.T) {
	token, err := New(secretKey).NewToken(AccessToken{UserId: "u-1", Role: "user"}, time.Minute)
	require.NoError(t, err)

	_, err = New("invalidSecret").VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "we shouldn't verify token with invalid secret")
}

func TestVerifyTokenRejectsOtherAlgorithms(t *testing.T) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		UserId:           "u-1",
		Type:             AccessTokenType,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = New(secretKey).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenUnknownType(t *testing.T) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		UserId:           "u-1",
		Type:             "sessionCookie",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secretKey))
	require.NoError(t, err)

	_, err = New(secretKey).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensAreDistinct(t *testing.T) {
	j := New(secretKey)
	first, err := j.NewToken(RefreshToken{UserId: "u-1"}, time.Hour)
	require.NoError(t, err)
	second, err := j.NewToken(RefreshToken{UserId: "u-1"}, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecodeToken(t *testing.T) {
	j := New(secretKey)

	t.Run("returns payload and expiry of a valid token", func(t *testing.T) {
		before := time.Now().Add(time.Hour).Truncate(time.Second)
		token, err := j.NewToken(AccessToken{UserId: "u-1", Role: "admin"}, time.Hour)
		require.NoError(t, err)

		payload, expiresAt, err := j.DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, AccessToken{UserId: "u-1", Role: "admin"}, payload)
		assert.WithinDuration(t, before, expiresAt, 2*time.Second)
	})

	t.Run("ignores expiry", func(t *testing.T) {
		token, err := j.NewToken(RefreshToken{UserId: "u-1"}, -time.Hour)
		require.NoError(t, err)

		payload, expiresAt, err := j.DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, RefreshTokenType, payload.Type())
		assert.True(t, expiresAt.Before(time.Now()))
	})

	t.Run("ignores signature", func(t *testing.T) {
		token, err := New("otherSecret").NewToken(PasswordResetToken{UserId: "u-2"}, time.Hour)
		require.NoError(t, err)

		payload, _, err := j.DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, PasswordResetToken{UserId: "u-2"}, payload)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := j.DecodeToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
