package middleware

import (
	"net/http"
	"strings"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/responses"
	pkgAuth "github.com/all-if-r/5SCENT-WEB-sub001/pkg/auth"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

// Auth verifies the bearer access token and seeds the request context with
// the caller id and role. Tokens are minted by the identity service; this API
// only verifies them.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="5scent"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="5scent", error="invalid_token"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID.String()
			ctx := WithRole(WithUserID(r.Context(), userID), claims.Role)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
				ctx = logg.WithActorRole(ctx, string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" and, for older storefront builds, a
// bare token.
func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(raw, " ")
	if !found {
		return raw, true
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}
