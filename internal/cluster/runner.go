package cluster

import (
	"context"
	"maps"
	"sync"

	"github.com/dray-io/clusterroute/internal/version"
)

// Record is one row returned by a discovery procedure, keyed by column name.
type Record map[string]any

// Connection is the part of a server connection discovery needs.
type Connection interface {
	// ServerVersion returns the version reported at handshake. It must be
	// stable for the lifetime of the connection.
	ServerVersion() version.ServerVersion

	// RunProcedure executes a read-only procedure call and returns its
	// records in server order.
	RunProcedure(ctx context.Context, call ProcedureCall) ([]Record, error)
}

// RunnerOption configures a ProcedureRunner.
type RunnerOption func(*ProcedureRunner)

// WithV2Threshold overrides the first server version assumed to expose the
// routing-context aware procedure. Unknown versions are ignored.
func WithV2Threshold(v version.ServerVersion) RunnerOption {
	return func(r *ProcedureRunner) {
		if !v.IsUnknown() {
			r.threshold = v
		}
	}
}

// ProcedureRunner selects and executes the discovery procedure for a
// connection. The routing context is fixed at construction.
//
// The runner remembers the last call it built. That field is updated on every
// Run, so ProcedureCalled only describes the most recent invocation when
// runs are not interleaved.
type ProcedureRunner struct {
	routingContext RoutingContext
	threshold      version.ServerVersion

	mu       sync.Mutex
	lastCall *ProcedureCall
}

// NewProcedureRunner creates a runner bound to routingContext, which may be nil.
func NewProcedureRunner(routingContext RoutingContext, opts ...RunnerOption) *ProcedureRunner {
	r := &ProcedureRunner{
		routingContext: maps.Clone(routingContext),
		threshold:      version.V3_2_0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SupportsV2 reports whether v is at or above the runner's V2 threshold.
func (r *ProcedureRunner) SupportsV2(v version.ServerVersion) bool {
	return v.AtLeast(r.threshold)
}

// ProcedureFor builds the call appropriate for a server at version v.
func (r *ProcedureRunner) ProcedureFor(v version.ServerVersion) ProcedureCall {
	if r.SupportsV2(v) {
		return ProcedureCall{
			Text:       GetServersV2Procedure,
			Parameters: map[string]any{ContextParameter: r.routingContext.parameterValue()},
		}
	}
	return ProcedureCall{
		Text:       GetServersProcedure,
		Parameters: map[string]any{},
	}
}

// Run selects the procedure for conn's server version, executes it and
// returns the records unmodified. Connection errors are returned as is.
func (r *ProcedureRunner) Run(ctx context.Context, conn Connection) ([]Record, error) {
	_, records, err := r.run(ctx, conn)
	return records, err
}

func (r *ProcedureRunner) run(ctx context.Context, conn Connection) (ProcedureCall, []Record, error) {
	call := r.ProcedureFor(conn.ServerVersion())

	r.mu.Lock()
	r.lastCall = &call
	r.mu.Unlock()

	records, err := conn.RunProcedure(ctx, call)
	if err != nil {
		return call, nil, err
	}
	return call, records, nil
}

// ProcedureCalled returns the call built by the most recent Run. The second
// result is false if Run has not been called.
func (r *ProcedureRunner) ProcedureCalled() (ProcedureCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastCall == nil {
		return ProcedureCall{}, false
	}
	return *r.lastCall, true
}
