package tools

import (
	"context"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

// Handler executes invocations of one family of tools.
//
// Handlers never return Go errors: whatever goes wrong is encoded in the
// returned Result so the model can see it and adapt.
type Handler interface {
	// Execute runs the invocation's input and returns the normalised outcome.
	Execute(ctx context.Context, input map[string]any) apicall.Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, input map[string]any) apicall.Result

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, input map[string]any) apicall.Result {
	return f(ctx, input)
}
