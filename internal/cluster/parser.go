package cluster

import (
	"math"
	"time"

	"github.com/dray-io/clusterroute/internal/address"
)

// Record columns produced by the discovery procedures.
const (
	FieldTTL       = "ttl"
	FieldServers   = "servers"
	FieldRole      = "role"
	FieldAddresses = "addresses"
)

// Server roles in a V2 record.
const (
	RoleRoute = "ROUTE"
	RoleRead  = "READ"
	RoleWrite = "WRITE"
)

// maxTTLSeconds is the largest TTL representable as a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// ParserOption configures a RoutingTableParser.
type ParserOption func(*RoutingTableParser)

// WithClock sets the clock used as the observation time for expiry.
func WithClock(now func() time.Time) ParserOption {
	return func(p *RoutingTableParser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDefaultPort sets the port used for addresses that omit one.
func WithDefaultPort(port int) ParserOption {
	return func(p *RoutingTableParser) {
		if port > 0 {
			p.defaultPort = port
		}
	}
}

// RoutingTableParser validates discovery records and builds routing tables.
// It holds no per-call state.
type RoutingTableParser struct {
	now         func() time.Time
	defaultPort int
}

// NewRoutingTableParser creates a parser using the wall clock by default.
func NewRoutingTableParser(opts ...ParserOption) *RoutingTableParser {
	p := &RoutingTableParser{
		now:         time.Now,
		defaultPort: address.DefaultPort,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts the records of one discovery call into a RoutingTable.
// Exactly one record is expected. No partial table is ever returned.
func (p *RoutingTableParser) Parse(records []Record, shape Shape) (RoutingTable, error) {
	switch {
	case len(records) == 0:
		return RoutingTable{}, ErrNoRoutingServerAvailable
	case len(records) > 1:
		return RoutingTable{}, protocolErrorf("expected exactly one record, got %d", len(records))
	}
	record := records[0]
	if record == nil {
		return RoutingTable{}, protocolErrorf("record is null")
	}

	ttl, err := parseTTL(record)
	if err != nil {
		return RoutingTable{}, err
	}

	var table RoutingTable
	switch shape {
	case ShapeV2:
		table, err = p.parseRoles(record)
	case ShapeV1:
		table, err = p.parseFlat(record)
	default:
		err = protocolErrorf("unsupported record shape %s", shape)
	}
	if err != nil {
		return RoutingTable{}, err
	}

	table.TTL = ttl
	table.ExpiresAt = p.now().Add(ttl)
	table.Shape = shape
	return table, nil
}

func parseTTL(record Record) (time.Duration, error) {
	raw, ok := record[FieldTTL]
	if !ok || raw == nil {
		return 0, protocolErrorf("missing %s", FieldTTL)
	}

	var seconds int64
	switch v := raw.(type) {
	case int:
		seconds = int64(v)
	case int8:
		seconds = int64(v)
	case int16:
		seconds = int64(v)
	case int32:
		seconds = int64(v)
	case int64:
		seconds = v
	case uint:
		seconds = clampUint(uint64(v))
	case uint8:
		seconds = int64(v)
	case uint16:
		seconds = int64(v)
	case uint32:
		seconds = int64(v)
	case uint64:
		seconds = clampUint(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, protocolErrorf("%s %v is not an integer", FieldTTL, v)
		}
		if v >= math.MaxInt64 {
			seconds = math.MaxInt64
		} else {
			seconds = int64(v)
		}
	default:
		return 0, protocolErrorf("%s has type %T, expected an integer", FieldTTL, raw)
	}

	if seconds < 0 {
		return 0, protocolErrorf("negative %s %d", FieldTTL, seconds)
	}
	if seconds > maxTTLSeconds {
		seconds = maxTTLSeconds
	}
	return time.Duration(seconds) * time.Second, nil
}

func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func (p *RoutingTableParser) parseRoles(record Record) (RoutingTable, error) {
	var servers []any
	if raw, ok := record[FieldServers]; ok && raw != nil {
		list, ok := asList(raw)
		if !ok {
			return RoutingTable{}, protocolErrorf("%s has type %T, expected a list", FieldServers, raw)
		}
		servers = list
	}

	var routers, readers, writers []address.Address
	for i, entry := range servers {
		server, ok := asMap(entry)
		if !ok {
			return RoutingTable{}, protocolErrorf("%s[%d] has type %T, expected a map", FieldServers, i, entry)
		}
		role, ok := server[FieldRole].(string)
		if !ok {
			return RoutingTable{}, protocolErrorf("%s[%d] has no %s", FieldServers, i, FieldRole)
		}
		addrs, err := p.parseAddresses(server[FieldAddresses])
		if err != nil {
			return RoutingTable{}, err
		}
		switch role {
		case RoleRoute:
			routers = append(routers, addrs...)
		case RoleRead:
			readers = append(readers, addrs...)
		case RoleWrite:
			writers = append(writers, addrs...)
		default:
			// Roles introduced by newer servers are not routable here.
		}
	}

	if len(routers) == 0 {
		return RoutingTable{}, protocolErrorf("no %s servers in discovery result", RoleRoute)
	}
	return RoutingTable{
		Routers: address.Dedup(routers),
		Readers: address.Dedup(readers),
		Writers: address.Dedup(writers),
	}, nil
}

func (p *RoutingTableParser) parseFlat(record Record) (RoutingTable, error) {
	addrs, err := p.parseAddresses(record[FieldAddresses])
	if err != nil {
		return RoutingTable{}, err
	}
	if len(addrs) == 0 {
		return RoutingTable{}, protocolErrorf("no servers in discovery result")
	}
	return RoutingTable{
		Routers: address.Dedup(addrs),
		Readers: []address.Address{},
		Writers: []address.Address{},
	}, nil
}

func (p *RoutingTableParser) parseAddresses(raw any) ([]address.Address, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := asList(raw)
	if !ok {
		return nil, protocolErrorf("%s has type %T, expected a list", FieldAddresses, raw)
	}
	addrs := make([]address.Address, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, protocolErrorf("address %v has type %T, expected a string", item, item)
		}
		a, err := address.Parse(s, p.defaultPort)
		if err != nil {
			return nil, protocolErrorWrapf(err, "malformed address %q", s)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
