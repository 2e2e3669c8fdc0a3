package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/labelqr/internal/logging"
)

// clientCookie holds the ID that selects a browser's preference record.
const clientCookie = "qr_client"

// clientMaxAge keeps the cookie for a year.
const clientMaxAge = 365 * 24 * 60 * 60

type clientKey struct{}

// clientMiddleware ensures every request carries a client ID, issuing a new
// cookie when the browser has none or sends a malformed one. The ID is added
// to the request logger.
func (s *Server) clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(clientCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   clientMaxAge,
				HttpOnly: true,
				Secure:   s.cfg.Security.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), clientKey{}, id)
		ctx, _ = logging.WithFields(ctx, "client", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientFromContext returns the client ID set by clientMiddleware.
func clientFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientKey{}).(string)
	return id
}
