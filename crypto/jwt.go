package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yanghwi/daily-dungeon/domain"
)

// Issuer is stamped into every session token and required on the way back.
const Issuer = "daily-dungeon"

// SessionTokens issues HS256 session tokens whose subject is the account id.
type SessionTokens struct {
	key    []byte
	maxAge time.Duration
}

func NewSessionTokens(key string, maxAge time.Duration) *SessionTokens {
	return &SessionTokens{key: []byte(key), maxAge: maxAge}
}

func (s *SessionTokens) Generate(accountID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}
	return signed, nil
}

func (s *SessionTokens) keyFor(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, domain.ErrInvalidSigningAlg
	}
	return s.key, nil
}

// Verify returns the account id of a valid session token.
func (s *SessionTokens) Verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.keyFor,
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidSigningAlg):
		return "", domain.ErrInvalidSigningAlg
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return "", domain.ErrInvalidTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "", domain.ErrCorruptedToken
	default:
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
	}

	if claims.Subject == "" {
		return "", domain.ErrCorruptedToken
	}
	return claims.Subject, nil
}
