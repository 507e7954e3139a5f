package middleware

import (
	"net/http"

	"github.com/partnerdesk/partnerdesk/internal/db"
)

// Ready rejects requests with 503 while the database connection is still
// being established, instead of letting every handler time out against it.
func Ready(handle *db.Handle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := handle.DB()
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
