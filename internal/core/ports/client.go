package ports

import (
	"context"

	"github.com/corral-proxy/corral/internal/core/domain"
)

// BackendClient is the per-backend wire adapter. Invoke translates the generic
// request into whatever the backend speaks, performs the outbound call and hands
// back the live (unbuffered) upstream body. It never returns a Go error:
// transport failures come back as a synthesized 500 event-stream response.
type BackendClient interface {
	Invoke(ctx context.Context, req *domain.Request) *domain.Response
	Protocol() string
}

// BackendClientFunc adapts a function to BackendClient, handy in tests
type BackendClientFunc func(ctx context.Context, req *domain.Request) *domain.Response

func (f BackendClientFunc) Invoke(ctx context.Context, req *domain.Request) *domain.Response {
	return f(ctx, req)
}

func (f BackendClientFunc) Protocol() string {
	return "func"
}
