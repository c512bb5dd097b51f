package cluster

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrNoRoutingServerAvailable is returned when the discovery procedure
// produced no records. The caller should try another router.
var ErrNoRoutingServerAvailable = errors.New("no routing server available")

// ProtocolError reports a discovery result that violates the procedure
// contract: several records, a bad TTL, no routers, or an unparseable
// address. It is not worth retrying against the same server.
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("routing procedure protocol violation: %s: %v", e.Reason, e.Cause)
	}
	return "routing procedure protocol violation: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func protocolErrorf(format string, args ...any) error {
	return errors.WithStack(&ProtocolError{Reason: fmt.Sprintf(format, args...)})
}

func protocolErrorWrapf(cause error, format string, args ...any) error {
	return errors.WithStack(&ProtocolError{Reason: fmt.Sprintf(format, args...), Cause: cause})
}

// IsProtocolError reports whether err carries a *ProtocolError.
func IsProtocolError(err error) bool {
	return errors.HasType(err, (*ProtocolError)(nil))
}

// Error kinds reported to logs and metrics.
const (
	ErrorKindTransport       = "transport"
	ErrorKindNoRoutingServer = "no_routing_server"
	ErrorKindProtocol        = "protocol"
)

// ErrorKind classifies a discovery error. It returns "" for nil. Anything that
// is neither ErrNoRoutingServerAvailable nor a *ProtocolError came from the
// connection.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoRoutingServerAvailable):
		return ErrorKindNoRoutingServer
	case IsProtocolError(err):
		return ErrorKindProtocol
	default:
		return ErrorKindTransport
	}
}
