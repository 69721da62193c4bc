package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

type route struct {
	prefix  string
	handler Handler
}

// ToolManager routes tool invocations to handlers by name prefix.
// Routes are matched in registration order; the first matching prefix wins.
type ToolManager struct {
	routes []route
}

// NewToolManager creates an empty manager.
func NewToolManager() *ToolManager {
	return &ToolManager{}
}

// Register routes every tool whose name starts with prefix to handler.
func (tm *ToolManager) Register(prefix string, handler Handler) {
	tm.routes = append(tm.routes, route{prefix: prefix, handler: handler})
}

// Handles reports whether some handler is registered for name.
func (tm *ToolManager) Handles(name string) bool {
	_, ok := tm.lookup(name)
	return ok
}

// Execute runs the invocation through the matching handler. Names without a
// handler produce an "unknown tool" failure result rather than nothing, so
// the conversation can always carry a tool_result back to the model.
func (tm *ToolManager) Execute(ctx context.Context, name string, input map[string]any) apicall.Result {
	handler, ok := tm.lookup(name)
	if !ok {
		return apicall.NewFailure(apicall.KindUnsupported, fmt.Sprintf("unknown tool: %s", name))
	}
	return handler.Execute(ctx, input)
}

// RouteCount returns the number of registered prefixes.
func (tm *ToolManager) RouteCount() int {
	return len(tm.routes)
}

func (tm *ToolManager) lookup(name string) (Handler, bool) {
	for _, r := range tm.routes {
		if strings.HasPrefix(name, r.prefix) {
			return r.handler, true
		}
	}
	return nil, false
}
