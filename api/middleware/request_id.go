package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const headerRequestID = "X-Request-Id"

// Upstream ids end up in log lines, so only short token-like values pass.
var upstreamRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID tags the request with an id, echoes it in the response and adds
// it to the context logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestIDFor(r)
			w.Header().Set(headerRequestID, id)
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), id)))
		})
	}
}

func requestIDFor(r *http.Request) string {
	if given := r.Header.Get(headerRequestID); upstreamRequestID.MatchString(given) {
		return given
	}
	return uuid.NewString()
}
