package testutil

import (
	"net/http"

	id "usermgmt/pkg/domain"
	"usermgmt/pkg/requestcontext"
)

// WithActor adds the caller identity to the request context.
// This simulates what the actor middleware does for gateway-authenticated requests.
// If the userID is not a valid UUID, the request is returned unchanged.
func WithActor(req *http.Request, userID, role string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActor(req.Context(), parsed, role))
}
