package authtransport

import (
	"net/http"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
)

// NewAuthenticater guards next with a bearer token check. Requests without a
// well formed "Authorization: Bearer <token>" header, or whose token fails
// verification, are answered with 401 and never reach next. On success the
// verified claim is available downstream through authsvc.ClaimFromContext.
func NewAuthenticater(v authservice.Verifier, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := kitjwt.HTTPToContext()(r.Context(), r)

			token, _ := ctx.Value(kitjwt.JWTContextKey).(string)
			if token == "" {
				logger.Log("path", r.URL.Path, "err", authsvc.ErrTokenMissing)
				errorEncoder(ctx, authsvc.ErrTokenMissing, w)
				return
			}

			claim, err := v.Verify(token)
			if err != nil {
				logger.Log("path", r.URL.Path, "err", err)
				errorEncoder(ctx, err, w)
				return
			}

			next.ServeHTTP(w, r.WithContext(authsvc.WithClaim(ctx, claim)))
		})
	}
}
