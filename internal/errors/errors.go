// Package errors defines domain-level errors used throughout the application.
// These errors represent failures in the MCP connection and resource layer and
// are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrConfiguration indicates an invalid or incomplete server configuration.
	// Surfaced synchronously when adding or updating a server, never retried.
	// Recommended to map to HTTP 400 Bad Request.
	ErrConfiguration = errors.New("invalid server configuration")

	// ErrServerNotFound indicates that the requested MCP server does not exist or is not configured.
	// Recommended to map to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrConnection indicates that a transport connection to an MCP server could not be established.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrConnection = errors.New("connection failed")

	// ErrAuthentication indicates a 401-class failure where a token refresh was attempted
	// once and also failed. The caller must prompt for re-authentication.
	// Recommended to map to HTTP 401 Unauthorized.
	ErrAuthentication = errors.New("server requires re-authentication")

	// ErrSession indicates the transport session is no longer valid and a single
	// reconnect attempt also failed.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrSession = errors.New("session expired")

	// ErrUnsupportedOperation indicates the server does not implement the requested MCP method.
	// Listing degrades to an empty result locally; other operations surface this error.
	// Recommended to map to HTTP 501 Not Implemented.
	ErrUnsupportedOperation = errors.New("operation not supported by server")

	// ErrExternalService is the generic catch-all for failures talking to an external
	// service (MCP server transport calls, durable config persistence).
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrExternalService = errors.New("external service error")

	// ErrToolForbidden indicates that the requested tool either does not exist for the MCP server,
	// or exists but is not allowed to be called.
	// Recommended to map to HTTP 403 Forbidden.
	ErrToolForbidden = errors.New("tool not allowed")

	// ErrToolCallFailed indicates that calling a tool on an MCP server failed.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrHealthNotTracked indicates that health monitoring is not enabled for the specified server.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("server health is not being tracked")
)

// External wraps err as an ErrExternalService carrying the failed action and
// server name, so callers can produce a user-facing message without any
// transport-level knowledge.
func External(action string, server string, err error) error {
	return fmt.Errorf("%w: action '%s' on server '%s': %w", ErrExternalService, action, server, err)
}
