package cluster

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Discovery procedure texts. These must match the server's procedure catalog exactly.
const (
	GetServersProcedure   = "CALL dbms.cluster.routing.getServers"
	GetServersV2Procedure = "CALL dbms.cluster.routing.getServersV2"

	// ContextParameter is the parameter name carrying the routing context.
	ContextParameter = "context"
)

// Shape identifies the record layout a discovery procedure returns.
type Shape int

const (
	// ShapeV1 is the legacy layout: a TTL and one flat address list.
	ShapeV1 Shape = iota + 1
	// ShapeV2 is the role-tagged layout: a TTL and ROUTE/READ/WRITE address lists.
	ShapeV2
)

func (s Shape) String() string {
	switch s {
	case ShapeV1:
		return "v1"
	case ShapeV2:
		return "v2"
	default:
		return "unknown"
	}
}

// ProcedureCall is a discovery procedure invocation as sent to the server.
// Parameters is never nil; a nil value under ContextParameter is the wire null.
type ProcedureCall struct {
	Text       string
	Parameters map[string]any
}

// Name returns the procedure name without the CALL keyword.
func (c ProcedureCall) Name() string {
	return strings.TrimPrefix(c.Text, "CALL ")
}

// Shape returns the record layout the called procedure produces.
func (c ProcedureCall) Shape() Shape {
	if c.Text == GetServersV2Procedure {
		return ShapeV2
	}
	return ShapeV1
}

func (c ProcedureCall) String() string {
	return fmt.Sprintf("ProcedureCall{text=%q, parameters=%s}", c.Text, formatValue(c.Parameters))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any:
		parts := make([]string, 0, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			parts = append(parts, k+": "+formatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}

// RoutingContext is caller supplied metadata passed to the V2 discovery
// procedure, for example region affinity hints.
type RoutingContext map[string]string

// reservedContextKeys may not be set by callers.
var reservedContextKeys = []string{"address"}

// ParseRoutingContext extracts a routing context from the query string of a
// routing URI such as "bolt+routing://core1:7687?region=eu&policy=fast".
// A URI without a query yields an empty context.
func ParseRoutingContext(uri string) (RoutingContext, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid routing uri %q", uri)
	}
	return ParseRoutingContextQuery(u.RawQuery)
}

// ParseRoutingContextQuery parses "k1=v1&k2=v2". Keys must be unique and
// neither keys nor values may be empty.
func ParseRoutingContextQuery(query string) (RoutingContext, error) {
	rc := RoutingContext{}
	if query == "" {
		return rc, nil
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Newf("invalid routing context pair %q: expected key=value", pair)
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid routing context key %q", rawKey)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid routing context value %q", rawValue)
		}
		if key == "" || value == "" {
			return nil, errors.Newf("invalid routing context pair %q: empty key or value", pair)
		}
		if slices.Contains(reservedContextKeys, key) {
			return nil, errors.Newf("routing context key %q is reserved", key)
		}
		if _, dup := rc[key]; dup {
			return nil, errors.Newf("duplicate routing context key %q", key)
		}
		rc[key] = value
	}
	return rc, nil
}

// IsEmpty reports whether the context carries no entries.
func (rc RoutingContext) IsEmpty() bool {
	return len(rc) == 0
}

// parameterValue encodes the context for the wire: nil when empty, otherwise
// a fresh map so later changes by the caller cannot leak into a sent call.
func (rc RoutingContext) parameterValue() any {
	if rc.IsEmpty() {
		return nil
	}
	m := make(map[string]any, len(rc))
	for k, v := range rc {
		m[k] = v
	}
	return m
}
