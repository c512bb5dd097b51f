// Package fixture replays recorded discovery responses. A fixture file
// stands in for a live server connection, which lets the discovery path be
// exercised offline.
//
// Example file:
//
//	agent: Neo4j/3.2.1
//	records:
//	  - ttl: 300
//	    servers:
//	      - role: ROUTE
//	        addresses: [core1:7687, core2:7687]
//	      - role: WRITE
//	        addresses: [core1:7687]
//
// Setting error instead of records makes every call fail with that message.
package fixture

import (
	"context"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dray-io/clusterroute/internal/cluster"
	"github.com/dray-io/clusterroute/internal/version"
)

// File is the on-disk form of a recorded response.
type File struct {
	Agent   string           `yaml:"agent"`
	Records []map[string]any `yaml:"records"`
	Error   string           `yaml:"error,omitempty"`
}

// Connection answers discovery calls from a File and remembers what it was asked.
type Connection struct {
	file    File
	version version.ServerVersion

	mu    sync.Mutex
	calls []cluster.ProcedureCall
}

var _ cluster.Connection = (*Connection)(nil)

// Load reads a fixture file from path.
func Load(path string) (*Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read fixture %s", path)
	}
	conn, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load fixture %s", path)
	}
	return conn, nil
}

// Parse decodes fixture YAML.
func Parse(data []byte) (*Connection, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse fixture")
	}
	if f.Agent == "" {
		return nil, errors.New("fixture has no agent")
	}
	return New(f), nil
}

// New creates a connection for an in-memory fixture.
func New(f File) *Connection {
	return &Connection{
		file:    f,
		version: version.Parse(f.Agent),
	}
}

// ServerVersion returns the version parsed from the fixture's agent string.
func (c *Connection) ServerVersion() version.ServerVersion {
	return c.version
}

// RunProcedure records call and returns the fixture's records, or its error.
func (c *Connection) RunProcedure(ctx context.Context, call cluster.ProcedureCall) ([]cluster.Record, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.file.Error != "" {
		return nil, errors.New(c.file.Error)
	}

	records := make([]cluster.Record, len(c.file.Records))
	for i, r := range c.file.Records {
		records[i] = cluster.Record(r)
	}
	return records, nil
}

// Calls returns the procedure calls received so far, oldest first.
func (c *Connection) Calls() []cluster.ProcedureCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cluster.ProcedureCall, len(c.calls))
	copy(out, c.calls)
	return out
}
