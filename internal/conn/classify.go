package conn

import (
	stderrors "errors"
	"net"
	"strings"

	"github.com/beyondbetter/mcphub/internal/errors"
)

// Transports rarely return typed errors we can inspect, so classification
// falls back to message patterns. Patterns are matched case-insensitively.

var authPatterns = []string{
	"401",
	"unauthorized",
	"invalid_token",
	"token expired",
	"token has expired",
	"access token expired",
	"authentication required",
	"token validation failed",
}

var sessionPatterns = []string{
	"session not found",
	"invalid session",
	"session expired",
	"session terminated",
	"missing session",
	"transport closed",
	"connection closed",
	"connection reset",
	"broken pipe",
	"file already closed",
	"process exited",
	"eof",
}

// IsAuthError reports whether err indicates the server rejected our
// credentials. These failures are recoverable by refreshing the access token
// and retrying once.
func (s *Supervisor) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errors.ErrAuthentication) {
		return true
	}

	return matchesAny(err, authPatterns)
}

// IsSessionError reports whether err indicates the transport session is no
// longer valid: an expired HTTP session or a dead stdio child process. These
// failures are recoverable by reconnecting and retrying once.
func (s *Supervisor) IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errors.ErrSession) {
		return true
	}

	// Auth failures are classified first and must not double as session
	// failures, or the retry layer would reconnect instead of refreshing.
	if s.IsAuthError(err) {
		return false
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}

	return matchesAny(err, sessionPatterns)
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
