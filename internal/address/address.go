// Package address implements the host:port value type used for cluster members.
package address

import (
	"net"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultPort is the port assumed when an address omits one.
const DefaultPort = 7687

// ErrInvalidAddress is returned for strings that are not a usable host:port.
var ErrInvalidAddress = errors.New("invalid server address")

// Address identifies a cluster member.
type Address struct {
	Host string
	Port int
}

// New returns an Address for the given host and port.
func New(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// Parse parses "host:port", "[ipv6]:port" or a bare host. A bare host gets
// defaultPort; defaultPort <= 0 means DefaultPort.
func Parse(s string, defaultPort int) (Address, error) {
	if defaultPort <= 0 {
		defaultPort = DefaultPort
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.Wrap(ErrInvalidAddress, "empty address")
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port component: a bare hostname or a bracketed IPv6 literal.
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
			bracketed := strings.HasPrefix(s, "[")
			if host == "" || bracketed != strings.HasSuffix(s, "]") || strings.ContainsAny(host, "[]") {
				return Address{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
			}
			return Address{Host: host, Port: defaultPort}, nil
		}
		return Address{}, errors.Wrapf(ErrInvalidAddress, "%q: %v", s, err)
	}
	if host == "" {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "%q: missing host", s)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "%q: bad port %q", s, portStr)
	}
	return Address{Host: host, Port: port}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Address {
	a, err := Parse(s, DefaultPort)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Dedup returns addrs with duplicates removed, keeping first occurrences in order.
func Dedup(addrs []Address) []Address {
	seen := make(map[Address]struct{}, len(addrs))
	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
