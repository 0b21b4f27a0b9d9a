package utils

import (
	"context"
	"time"
)

type contextKey string

// Request-scoped context keys populated by handlers
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

const (
	// DefaultRequestTimeout bounds a single API request end to end
	DefaultRequestTimeout = 30 * time.Second

	// ExportRequestTimeout is used for the xlsx member export
	ExportRequestTimeout = 2 * time.Minute
)

// RequestIDFromContext returns the request id stored by handlers, if any.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
