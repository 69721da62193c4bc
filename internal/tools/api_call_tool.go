package tools

import (
	"context"
	"fmt"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

// ReservedPrefix marks tools that are executed as HTTP calls.
const ReservedPrefix = "api_call"

// APICallTool executes "api_call*" invocations through an apicall.Executor.
// Every generated tool shares the same input contract:
// {url, method, requestBody?, params?, headers?}.
type APICallTool struct {
	executor *apicall.Executor
}

var _ Handler = (*APICallTool)(nil)

// NewAPICallTool wraps an executor.
func NewAPICallTool(executor *apicall.Executor) *APICallTool {
	return &APICallTool{executor: executor}
}

// Definition is a catch-all tool for when no generated tool list is supplied.
func (at *APICallTool) Definition() Tool {
	return NewTool(
		ReservedPrefix,
		"Calls an HTTP endpoint and returns its JSON (or text) response together with the status code.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"url": {
					Type:        "string",
					Description: "Absolute URL of the endpoint, e.g. https://api.example.com/users/42.",
				},
				"method": {
					Type:        "string",
					Description: "HTTP method to use.",
					Enum:        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
				},
				"requestBody": {
					Type:                 "object",
					Description:          "JSON request body, for methods that take one.",
					AdditionalProperties: true,
				},
				"params": {
					Type:                 "object",
					Description:          "Query string parameters.",
					AdditionalProperties: true,
				},
				"headers": {
					Type:                 "object",
					Description:          "Extra request headers. They override the configured defaults.",
					AdditionalProperties: true,
				},
			},
			Required: []string{"url", "method"},
		},
	)
}

// Execute decodes the invocation input and performs the call.
func (at *APICallTool) Execute(ctx context.Context, input map[string]any) apicall.Result {
	call := apicall.Call{
		URL:    stringField(input, "url"),
		Method: stringField(input, "method"),
		Body:   input["requestBody"],
	}
	if params, ok := input["params"].(map[string]any); ok {
		call.Params = params
	}
	if headers, ok := input["headers"].(map[string]any); ok && len(headers) > 0 {
		call.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			call.Headers[k] = fmt.Sprint(v)
		}
	}
	return at.executor.Execute(ctx, call)
}

func stringField(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
