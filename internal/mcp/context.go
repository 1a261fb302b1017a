package mcp

import (
	"context"
	"net/http"

	"github.com/bobmcallan/toolsmith/internal/client"
)

// withRequestCredentials passes the caller's Authorization header through to
// remote calls made while serving the request.
func withRequestCredentials(ctx context.Context, r *http.Request) context.Context {
	return client.WithCredentials(ctx, r.Header.Get("Authorization"))
}
