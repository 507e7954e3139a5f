package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/ctxkeys"
	"github.com/partnerdesk/partnerdesk/internal/service"
)

// Auth resolves the session token, extends the session and adds the account
// to the request context. Requests without a valid token get a JSON 401.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := authService.Validate(r.Context(), TokenFromRequest(r))
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := ctxkeys.WithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest reads the session token from the Authorization header
// (Bearer scheme) or the X-Auth-Token header.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-Auth-Token")
}

func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.KindOf(err).HTTPStatus())
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
