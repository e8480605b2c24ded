package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claim is the identity carried by a verified token. It lives for exactly one
// request and is rebuilt from the token every time.
type Claim struct {
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
}

type contextKey string

const ClaimContextKey contextKey = "Claim"

func WithClaim(ctx context.Context, c Claim) context.Context {
	return context.WithValue(ctx, ClaimContextKey, c)
}

func ClaimFromContext(ctx context.Context) (Claim, bool) {
	c, ok := ctx.Value(ClaimContextKey).(Claim)
	return c, ok
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTokenMissing    = errors.New("missing or invalid authorization header")
	ErrClaimsMissing   = errors.New("claims were not passed through the context")

	// ErrTokenInvalid is the only token failure a client ever sees. The
	// wrapped variants exist for logging.
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenMalformed   = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrTokenInvalid)
	ErrTokenExpired     = fmt.Errorf("%w: expired", ErrTokenInvalid)
)
