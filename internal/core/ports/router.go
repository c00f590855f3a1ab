package ports

import (
	"context"

	"github.com/corral-proxy/corral/internal/core/domain"
)

// RequestRouter is the dispatcher as seen by the front door. Route blocks,
// Submit plus Await is the queued form of the same thing.
type RequestRouter interface {
	Route(ctx context.Context, req *domain.Request) *domain.Response
	Submit(ctx context.Context, req *domain.Request)
	Await(ctx context.Context, req *domain.Request) *domain.Response
}
