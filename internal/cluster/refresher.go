package cluster

import (
	"context"
	"sync"
	"time"
)

// Refresher keeps one routing table current for an access mode. The table is
// rediscovered only when it is stale for that mode.
type Refresher struct {
	discovery *Discovery
	mode      AccessMode
	now       func() time.Time

	mu    sync.Mutex
	table RoutingTable
	valid bool
}

// NewRefresher creates a refresher that discovers through d. The refresher
// shares d's clock so expiry is judged against the same time source.
func NewRefresher(d *Discovery, mode AccessMode) *Refresher {
	return &Refresher{
		discovery: d,
		mode:      mode,
		now:       d.parser.now,
	}
}

// Table returns the current table, rediscovering through conn when the
// cached one is missing or stale. A failed rediscovery keeps the previous
// table and returns the discovery error unchanged. Concurrent callers wait
// for a single rediscovery.
func (r *Refresher) Table(ctx context.Context, conn Connection) (RoutingTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid && !r.table.IsStaleFor(r.mode, r.now()) {
		return r.table, nil
	}

	table, err := r.discovery.Discover(ctx, conn)
	if err != nil {
		return RoutingTable{}, err
	}
	r.table = table
	r.valid = true
	return table, nil
}

// Current returns the last successfully discovered table, if any, without
// checking freshness.
func (r *Refresher) Current() (RoutingTable, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table, r.valid
}

// Invalidate forgets the cached table so the next Table call rediscovers.
func (r *Refresher) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = false
}
