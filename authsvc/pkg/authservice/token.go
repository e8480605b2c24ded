package authservice

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/twinj/uuid"
)

// Verifier resolves a token back into the claim it was issued for.
type Verifier interface {
	Verify(token string) (authsvc.Claim, error)
}

type Tokenizer interface {
	Issue(c authsvc.Claim, ttl time.Duration) (string, error)
	Verifier
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
}

type tokenizer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenizer signs tokens with HS256 using secret. Every instance sharing
// the secret accepts every other instance's tokens.
func NewTokenizer(secret string) Tokenizer {
	return &tokenizer{secret: []byte(secret), now: time.Now}
}

var uuidV4 = uuid.NewV4

func (t *tokenizer) Issue(c authsvc.Claim, ttl time.Duration) (string, error) {
	if c.UserID == 0 || c.Email == "" {
		return "", authsvc.ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = authsvc.DefaultTokenTTL
	}

	now := t.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidV4().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: c.UserID,
		Email:  c.Email,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *tokenizer) Verify(token string) (authsvc.Claim, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return authsvc.Claim{}, authsvc.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return authsvc.Claim{}, authsvc.ErrSignatureInvalid
	default:
		return authsvc.Claim{}, authsvc.ErrTokenMalformed
	}

	if claims.UserID == 0 || claims.Email == "" {
		return authsvc.Claim{}, authsvc.ErrTokenMalformed
	}

	return authsvc.Claim{UserID: claims.UserID, Email: claims.Email}, nil
}

// Inspect reads the claim and expiry of token without checking its
// signature. It is meant for clients holding a token they cannot verify;
// servers must use Verify.
func Inspect(token string) (authsvc.Claim, time.Time, error) {
	var claims tokenClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.UserID == 0 || claims.Email == "" || claims.ExpiresAt == nil {
		return authsvc.Claim{}, time.Time{}, authsvc.ErrTokenMalformed
	}
	return authsvc.Claim{UserID: claims.UserID, Email: claims.Email}, claims.ExpiresAt.Time, nil
}
