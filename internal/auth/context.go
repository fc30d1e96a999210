// ABOUTME: Request-context plumbing for the authenticated session
// ABOUTME: Handlers read the viewer here and pass it explicitly into services

package auth

import "context"

type contextKey struct{}

// WithSession returns a context carrying the authenticated session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session placed by the auth middleware.
// The second return is false for unauthenticated contexts.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
