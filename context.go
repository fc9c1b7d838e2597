package bedrud

import (
	"context"

	"github.com/bedrud/bedrud-go/gateway"
)

// WithRequestID attaches a correlation id to ctx. Backend requests made with ctx send it
// in the X-Request-Id header instead of a generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return gateway.WithRequestID(ctx, id)
}
