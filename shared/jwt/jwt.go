package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itchan-dev/accounts/shared/domain"
)

// ErrInvalidToken is returned for tokens with a bad signature, an expired or
// missing exp claim, or an unknown type.
var ErrInvalidToken = errors.New("invalid token")

type TokenType string

const (
	AccessTokenType            TokenType = "accessToken"
	RefreshTokenType           TokenType = "refreshToken"
	EmailVerificationTokenType TokenType = "emailVerification"
	PasswordResetTokenType     TokenType = "passwordReset"
)

// Payload is implemented by AccessToken, RefreshToken, EmailVerificationToken
// and PasswordResetToken.
type Payload interface {
	Type() TokenType
	Subject() domain.UserId
}

type AccessToken struct {
	UserId domain.UserId
	Role   domain.Role
}

type RefreshToken struct {
	UserId domain.UserId
}

type EmailVerificationToken struct {
	UserId domain.UserId
}

type PasswordResetToken struct {
	UserId domain.UserId
}

func (t AccessToken) Type() TokenType { return AccessTokenType }
func (t AccessToken) Subject() domain.UserId { return t.UserId }
func (t RefreshToken) Type() TokenType { return RefreshTokenType }
func (t RefreshToken) Subject() domain.UserId { return t.UserId }
func (t EmailVerificationToken) Type() TokenType { return EmailVerificationTokenType }
func (t EmailVerificationToken) Subject() domain.UserId { return t.UserId }
func (t PasswordResetToken) Type() TokenType { return PasswordResetTokenType }
func (t PasswordResetToken) Subject() domain.UserId { return t.UserId }

type claims struct {
	jwt.RegisteredClaims
	UserId domain.UserId `json:"userId,omitempty"`
	Type   TokenType     `json:"type"`
	Role   domain.Role   `json:"role,omitempty"`
}

func (c *claims) payload() (Payload, error) {
	switch c.Type {
	case AccessTokenType:
		return AccessToken{UserId: c.UserId, Role: c.Role}, nil
	case RefreshTokenType:
		return RefreshToken{UserId: c.UserId}, nil
	case EmailVerificationTokenType:
		return EmailVerificationToken{UserId: c.UserId}, nil
	case PasswordResetTokenType:
		return PasswordResetToken{UserId: c.UserId}, nil
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", ErrInvalidToken, c.Type)
	}
}

type JwtService interface {
	NewToken(payload Payload, ttl time.Duration) (string, error)
	VerifyToken(token string) (Payload, error)
	DecodeToken(token string) (Payload, time.Time, error)
}

type Jwt struct {
	secretKey []byte
}

func New(secretKey string) *Jwt {
	return &Jwt{secretKey: []byte(secretKey)}
}

// NewToken signs payload with HS256 and an expiry ttl from now.
func (j *Jwt) NewToken(payload Payload, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserId: payload.Subject(),
		Type:   payload.Type(),
	}
	if access, ok := payload.(AccessToken); ok {
		c.Role = access.Role
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("can't sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken checks signature and expiry and returns the typed payload.
func (j *Jwt) VerifyToken(tokenString string) (Payload, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return c.payload()
}

// DecodeToken reads payload and expiry without checking signature or expiry.
// Only use it on tokens that are about to be invalidated.
func (j *Jwt) DecodeToken(tokenString string) (Payload, time.Time, error) {
	c := &claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, c); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.ExpiresAt == nil {
		return nil, time.Time{}, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	payload, err := c.payload()
	if err != nil {
		return nil, time.Time{}, err
	}
	return payload, c.ExpiresAt.Time, nil
}
