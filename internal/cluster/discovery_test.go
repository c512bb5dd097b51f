package cluster

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/clusterroute/internal/logging"
)

// mockMetricsRecorder tracks calls for testing.
type mockMetricsRecorder struct {
	discoveries []recordedDiscovery
	tables      [][3]int
}

type recordedDiscovery struct {
	procedure string
	duration  float64
	kind      string
}

func (m *mockMetricsRecorder) RecordDiscovery(procedure string, durationSeconds float64, errorKind string) {
	m.discoveries = append(m.discoveries, recordedDiscovery{procedure, durationSeconds, errorKind})
}

func (m *mockMetricsRecorder) RecordRoutingTable(routers, readers, writers int) {
	m.tables = append(m.tables, [3]int{routers, readers, writers})
}

func newTestDiscovery(rc RoutingContext, buf *bytes.Buffer, metrics MetricsRecorder) *Discovery {
	return NewDiscovery(DiscoveryConfig{
		RoutingContext: rc,
		Clock:          fixedClock,
		Logger:         logging.New(logging.Config{Level: logging.LevelDebug, Format: logging.FormatJSON, Output: buf}),
		Metrics:        metrics,
	})
}

func TestDiscovery_V2(t *testing.T) {
	var buf bytes.Buffer
	metrics := &mockMetricsRecorder{}
	d := newTestDiscovery(RoutingContext{"region": "eu"}, &buf, metrics)
	conn := &stubConnection{
		agent: "Neo4j/3.2.1",
		records: []Record{v2Record(300,
			role(RoleRoute, "core1:7687", "core2:7687"),
			role(RoleRead, "replica1:7687"),
			role(RoleWrite, "core1:7687"),
		)},
	}

	table, err := d.Discover(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, addrs("core1:7687", "core2:7687"), table.Routers)
	assert.Equal(t, addrs("replica1:7687"), table.Readers)
	assert.Equal(t, addrs("core1:7687"), table.Writers)
	assert.Equal(t, observedAt.Add(300*time.Second), table.ExpiresAt)

	require.Len(t, conn.calls, 1)
	assert.Equal(t, map[string]any{"context": map[string]any{"region": "eu"}}, conn.calls[0].Parameters)

	call, ok := d.Runner().ProcedureCalled()
	require.True(t, ok)
	assert.Equal(t, GetServersV2Procedure, call.Text)

	require.Len(t, metrics.discoveries, 1)
	assert.Equal(t, "dbms.cluster.routing.getServersV2", metrics.discoveries[0].procedure)
	assert.Equal(t, "", metrics.discoveries[0].kind)
	assert.Equal(t, [][3]int{{2, 1, 1}}, metrics.tables)

	out := buf.String()
	assert.Contains(t, out, "discovery procedure selected")
	assert.Contains(t, out, "routing table discovered")
	assert.Contains(t, out, `"correlationId"`)
}

func TestDiscovery_LegacyServer(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDiscovery(RoutingContext{"region": "eu"}, &buf, nil)
	conn := &stubConnection{
		agent:   "Neo4j/3.1.8",
		records: []Record{{FieldTTL: 100, FieldAddresses: []any{"core1:7687", "core2:7687"}}},
	}

	table, err := d.Discover(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, addrs("core1:7687", "core2:7687"), table.Routers)
	assert.Empty(t, table.Readers)
	assert.Empty(t, table.Writers)
	require.Len(t, conn.calls, 1)
	assert.Equal(t, GetServersProcedure, conn.calls[0].Text)
	assert.Empty(t, conn.calls[0].Parameters)
}

func TestDiscovery_TransportErrorUnchanged(t *testing.T) {
	var buf bytes.Buffer
	metrics := &mockMetricsRecorder{}
	d := newTestDiscovery(nil, &buf, metrics)
	transportErr := errors.New("i/o timeout")
	conn := &stubConnection{agent: "Neo4j/3.2.1", err: transportErr}

	table, err := d.Discover(context.Background(), conn)
	assert.True(t, err == transportErr, "error must not be wrapped, got %v", err)
	assert.Equal(t, RoutingTable{}, table)

	require.Len(t, metrics.discoveries, 1)
	assert.Equal(t, ErrorKindTransport, metrics.discoveries[0].kind)
	assert.Empty(t, metrics.tables)
	assert.Contains(t, buf.String(), "discovery failed")
}

func TestDiscovery_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		kind    string
	}{
		{name: "no records", records: nil, kind: ErrorKindNoRoutingServer},
		{name: "two records", records: []Record{v2Record(1, role(RoleRoute, "a:1")), v2Record(1, role(RoleRoute, "a:1"))}, kind: ErrorKindProtocol},
		{name: "no routers", records: []Record{v2Record(1, role(RoleRead, "a:1"))}, kind: ErrorKindProtocol},
		{name: "negative ttl", records: []Record{v2Record(-1, role(RoleRoute, "a:1"))}, kind: ErrorKindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			metrics := &mockMetricsRecorder{}
			d := newTestDiscovery(nil, &buf, metrics)

			_, err := d.Discover(context.Background(), &stubConnection{agent: "Neo4j/3.2.1", records: tt.records})
			require.Error(t, err)
			assert.Equal(t, tt.kind, ErrorKind(err))
			require.Len(t, metrics.discoveries, 1)
			assert.Equal(t, tt.kind, metrics.discoveries[0].kind)
			assert.Contains(t, buf.String(), `"kind":"`+tt.kind+`"`)
		})
	}
}

func TestDiscovery_UsesContextCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDiscovery(nil, &buf, nil)
	conn := &stubConnection{agent: "Neo4j/3.2.1", records: []Record{v2Record(1, role(RoleRoute, "a:1"))}}

	ctx := logging.WithCorrelationIDCtx(context.Background(), "refresh-42")
	_, err := d.Discover(ctx, conn)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Contains(t, line, `"correlationId":"refresh-42"`)
	}
}

func TestDiscovery_DefaultLogger(t *testing.T) {
	d := NewDiscovery(DiscoveryConfig{})
	require.NotNil(t, d.logger)
	require.NotNil(t, d.Runner())
}
