package cluster

import (
	"fmt"
	"strings"
	"time"

	"github.com/dray-io/clusterroute/internal/address"
)

// AccessMode is the kind of work a routing table is consulted for.
type AccessMode int

const (
	AccessModeRead AccessMode = iota
	AccessModeWrite
)

func (m AccessMode) String() string {
	if m == AccessModeWrite {
		return "write"
	}
	return "read"
}

// RoutingTable is the cluster topology returned by one discovery call.
// Routers is never empty for a table produced by the parser. Each role list
// is de-duplicated in first-seen order.
type RoutingTable struct {
	Routers []address.Address
	Readers []address.Address
	Writers []address.Address

	// TTL is the lifetime the server granted the table.
	TTL time.Duration
	// ExpiresAt is the observation time plus TTL.
	ExpiresAt time.Time

	// Shape is the record layout the table was parsed from. ShapeV1 tables
	// carry no role separation, so their routers also serve reads and writes.
	Shape Shape
}

// IsExpired reports whether the table's TTL has elapsed at now.
func (t RoutingTable) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsStaleFor reports whether the table can no longer serve mode: it has
// expired, has no routers, or has no servers for the requested role.
func (t RoutingTable) IsStaleFor(mode AccessMode, now time.Time) bool {
	if t.IsExpired(now) || len(t.Routers) == 0 {
		return true
	}
	return len(t.ServersFor(mode)) == 0
}

// ServersFor returns the servers usable for mode. Legacy tables have no
// role lists and fall back to their routers.
func (t RoutingTable) ServersFor(mode AccessMode) []address.Address {
	if t.Shape == ShapeV1 {
		return t.Routers
	}
	if mode == AccessModeWrite {
		return t.Writers
	}
	return t.Readers
}

func (t RoutingTable) String() string {
	return fmt.Sprintf("RoutingTable{routers=[%s], readers=[%s], writers=[%s], ttl=%s, expiresAt=%s}",
		joinAddresses(t.Routers), joinAddresses(t.Readers), joinAddresses(t.Writers),
		t.TTL, t.ExpiresAt.UTC().Format(time.RFC3339))
}

func joinAddresses(addrs []address.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
