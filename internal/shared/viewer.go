package shared

import (
	"context"
	"strings"

	"github.com/campusportal/portal-rest/internal/principal"
)

// Viewer returns the authenticated user bound to the request session.
func Viewer(ctx context.Context) (principal.Principal, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return principal.Principal{}, false
	}
	username := strings.TrimSpace(sess.User())
	if username == "" {
		return principal.Principal{}, false
	}
	return principal.User(username), true
}
