// Package actor resolves the calling identity asserted by the upstream gateway.
//
// Token verification happens at the gateway; this service only trusts the forwarded
// X-Actor-ID and X-Actor-Role headers, optionally guarded by a shared gateway secret.
package actor

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "usermgmt/pkg/domain"
	"usermgmt/pkg/requestcontext"
)

const (
	HeaderActorID      = "X-Actor-ID"
	HeaderActorRole    = "X-Actor-Role"
	HeaderGatewayToken = "X-Gateway-Token"
)

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// Resolve attaches the actor to the request context. Requests without actor headers
// pass through anonymously so that public endpoints (registration) keep working.
// When gatewayToken is non-empty, actor headers are only honoured alongside a
// matching X-Gateway-Token.
func Resolve(gatewayToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if gatewayToken != "" {
				token := r.Header.Get(HeaderGatewayToken)
				if subtle.ConstantTimeCompare([]byte(token), []byte(gatewayToken)) != 1 {
					logger.WarnContext(ctx, "gateway token mismatch",
						"request_id", requestcontext.RequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "gateway token required")
					return
				}
			}

			userID, err := id.ParseUserID(rawID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid actor id",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid actor id")
				return
			}

			role := strings.TrimSpace(r.Header.Get(HeaderActorRole))
			ctx = requestcontext.WithActor(ctx, userID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
