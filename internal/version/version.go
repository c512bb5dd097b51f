// Package version parses and orders the server versions reported in the
// connection handshake agent string (for example "Neo4j/3.2.1").
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// ServerVersion is the version a server reported for itself. The zero value
// is Unknown, which orders below every parsed version.
type ServerVersion struct {
	product string
	major   uint64
	minor   uint64
	patch   uint64
	known   bool
}

// Unknown is the version assigned to agent strings that cannot be parsed.
var Unknown = ServerVersion{}

// V3_2_0 is the first server release exposing the routing-context aware
// discovery procedure.
var V3_2_0 = New("Neo4j", 3, 2, 0)

// New returns a known version with the given components.
func New(product string, major, minor, patch uint64) ServerVersion {
	return ServerVersion{
		product: product,
		major:   major,
		minor:   minor,
		patch:   patch,
		known:   true,
	}
}

// Parse parses an agent string of the form "<product>/<major>.<minor>.<patch>".
// It never fails: malformed input yields Unknown. Missing minor or patch
// components are read as zero and pre-release suffixes are ignored for
// ordering purposes.
func Parse(agent string) ServerVersion {
	product, raw, ok := strings.Cut(strings.TrimSpace(agent), "/")
	if !ok || product == "" || raw == "" {
		return Unknown
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return Unknown
	}
	return New(product, v.Major(), v.Minor(), v.Patch())
}

// ParseNumber parses a bare version number such as "3.2.0". It is used for
// configured thresholds, which carry no product prefix.
func ParseNumber(s string) (ServerVersion, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Unknown, errors.Wrapf(err, "invalid server version %q", s)
	}
	return New("", v.Major(), v.Minor(), v.Patch()), nil
}

// Product returns the product name, or "" for Unknown.
func (v ServerVersion) Product() string { return v.product }

// Major returns the major component.
func (v ServerVersion) Major() uint64 { return v.major }

// Minor returns the minor component.
func (v ServerVersion) Minor() uint64 { return v.minor }

// Patch returns the patch component.
func (v ServerVersion) Patch() uint64 { return v.patch }

// IsUnknown reports whether the version could not be parsed.
func (v ServerVersion) IsUnknown() bool { return !v.known }

// Compare returns -1, 0 or 1 depending on whether v orders before, equal to,
// or after o. The product name does not take part in the comparison.
func (v ServerVersion) Compare(o ServerVersion) int {
	switch {
	case !v.known && !o.known:
		return 0
	case !v.known:
		return -1
	case !o.known:
		return 1
	}
	if c := cmpUint(v.major, o.major); c != 0 {
		return c
	}
	if c := cmpUint(v.minor, o.minor); c != 0 {
		return c
	}
	return cmpUint(v.patch, o.patch)
}

// LessThan reports whether v orders strictly before o.
func (v ServerVersion) LessThan(o ServerVersion) bool {
	return v.Compare(o) < 0
}

// AtLeast reports whether v orders at or after o.
func (v ServerVersion) AtLeast(o ServerVersion) bool {
	return v.Compare(o) >= 0
}

func (v ServerVersion) String() string {
	if !v.known {
		return "unknown"
	}
	number := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if v.product == "" {
		return number
	}
	return v.product + "/" + number
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
