package testutil

import (
	"net/http"

	id "crowngate/pkg/domain"
	"crowngate/pkg/requestcontext"
)

// WithUser adds an authenticated user ID and role to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithUser(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithClientMetadata adds client IP and User-Agent to the request context.
func WithClientMetadata(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
