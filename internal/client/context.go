package client

import "context"

// credentialsKey is the context key for a per-call Authorization override.
type credentialsKey struct{}

// WithCredentials returns a context whose remote calls send authorization
// instead of the configured credentials.
func WithCredentials(ctx context.Context, authorization string) context.Context {
	if authorization == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey{}, authorization)
}

// CredentialsFrom extracts a per-call Authorization override, if present.
func CredentialsFrom(ctx context.Context) (string, bool) {
	auth, ok := ctx.Value(credentialsKey{}).(string)
	return auth, ok && auth != ""
}
