package backend

import "context"

// Credentials identify the caller to the upstream backend.
type Credentials struct {
	BaseURL string
	Token   string
}

type credentialsKey struct{}

type requestIDKey struct{}

// WithCredentials returns a context carrying creds. Empty fields fall back to
// the client defaults.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials stored in ctx, if any.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

// WithRequestID returns a context whose upstream requests carry id as
// X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
