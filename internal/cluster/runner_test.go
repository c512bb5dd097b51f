package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/clusterroute/internal/version"
)

// stubConnection returns canned records without any network traffic.
type stubConnection struct {
	agent   string
	records []Record
	err     error
	calls   []ProcedureCall
}

func (c *stubConnection) ServerVersion() version.ServerVersion {
	return version.Parse(c.agent)
}

func (c *stubConnection) RunProcedure(_ context.Context, call ProcedureCall) ([]Record, error) {
	c.calls = append(c.calls, call)
	if c.err != nil {
		return nil, c.err
	}
	return c.records, nil
}

func TestRunner_CallsGetServersV2WithNull(t *testing.T) {
	runner := NewProcedureRunner(nil)
	conn := &stubConnection{agent: "Neo4j/3.2.1"}

	_, err := runner.Run(context.Background(), conn)
	require.NoError(t, err)

	call, ok := runner.ProcedureCalled()
	require.True(t, ok)
	assert.Equal(t, "CALL dbms.cluster.routing.getServersV2", call.Text)
	require.Contains(t, call.Parameters, "context")
	assert.Nil(t, call.Parameters["context"])
	assert.Len(t, call.Parameters, 1)
	assert.Equal(t, `ProcedureCall{text="CALL dbms.cluster.routing.getServersV2", parameters={context: NULL}}`, call.String())
}

func TestRunner_EmptyContextIsSentAsNull(t *testing.T) {
	runner := NewProcedureRunner(RoutingContext{})
	conn := &stubConnection{agent: "Neo4j/3.2.1"}

	_, err := runner.Run(context.Background(), conn)
	require.NoError(t, err)

	call, _ := runner.ProcedureCalled()
	require.Contains(t, call.Parameters, "context")
	assert.Nil(t, call.Parameters["context"])
}

func TestRunner_CallsGetServersV2WithParam(t *testing.T) {
	runner := NewProcedureRunner(RoutingContext{"key1": "value1", "key2": "value2"})
	conn := &stubConnection{agent: "Neo4j/3.2.1"}

	_, err := runner.Run(context.Background(), conn)
	require.NoError(t, err)

	call, ok := runner.ProcedureCalled()
	require.True(t, ok)
	assert.Equal(t, GetServersV2Procedure, call.Text)
	assert.Equal(t, map[string]any{
		"context": map[string]any{"key2": "value2", "key1": "value1"},
	}, call.Parameters)
	assert.Equal(t,
		`ProcedureCall{text="CALL dbms.cluster.routing.getServersV2", parameters={context: {key1: "value1", key2: "value2"}}}`,
		call.String())
}

func TestRunner_CallsGetServersV1(t *testing.T) {
	runner := NewProcedureRunner(RoutingContext{"key1": "value1", "key2": "value2"})
	conn := &stubConnection{agent: "Neo4j/3.1.8"}

	_, err := runner.Run(context.Background(), conn)
	require.NoError(t, err)

	call, ok := runner.ProcedureCalled()
	require.True(t, ok)
	assert.Equal(t, "CALL dbms.cluster.routing.getServers", call.Text)
	assert.NotNil(t, call.Parameters)
	assert.Empty(t, call.Parameters)
	assert.Equal(t, `ProcedureCall{text="CALL dbms.cluster.routing.getServers", parameters={}}`, call.String())
}

func TestRunner_ProcedureByVersion(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"Neo4j/3.0.12", GetServersProcedure},
		{"Neo4j/3.1.0", GetServersProcedure},
		{"Neo4j/3.1.99", GetServersProcedure},
		{"Neo4j/3.2.0", GetServersV2Procedure},
		{"Neo4j/3.2.0-alpha07", GetServersV2Procedure},
		{"Neo4j/3.3.4", GetServersV2Procedure},
		{"Neo4j/4.0.0", GetServersV2Procedure},
		{"Neo4j/dev", GetServersProcedure},
		{"", GetServersProcedure},
	}

	runner := NewProcedureRunner(RoutingContext{"region": "eu"})
	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			conn := &stubConnection{agent: tt.agent}
			_, err := runner.Run(context.Background(), conn)
			require.NoError(t, err)

			require.Len(t, conn.calls, 1)
			assert.Equal(t, tt.want, conn.calls[0].Text)
			if tt.want == GetServersProcedure {
				assert.Empty(t, conn.calls[0].Parameters)
			}
		})
	}
}

func TestRunner_ReturnsRecordsUnmodified(t *testing.T) {
	records := []Record{{"ttl": 300}, {"ttl": 1}}
	conn := &stubConnection{agent: "Neo4j/3.2.1", records: records}

	got, err := NewProcedureRunner(nil).Run(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestRunner_PropagatesTransportErrorUnchanged(t *testing.T) {
	transportErr := errors.New("connection reset by peer")
	conn := &stubConnection{agent: "Neo4j/3.2.1", err: transportErr}
	runner := NewProcedureRunner(nil)

	records, err := runner.Run(context.Background(), conn)
	assert.Nil(t, records)
	assert.True(t, err == transportErr, "error must not be wrapped, got %v", err)

	_, ok := runner.ProcedureCalled()
	assert.True(t, ok, "the attempted call is still recorded")
}

func TestRunner_ProcedureCalledBeforeRun(t *testing.T) {
	_, ok := NewProcedureRunner(nil).ProcedureCalled()
	assert.False(t, ok)
}

func TestRunner_ContextIsCopied(t *testing.T) {
	rc := RoutingContext{"region": "eu"}
	runner := NewProcedureRunner(rc)
	rc["region"] = "us"

	call := runner.ProcedureFor(version.Parse("Neo4j/3.2.1"))
	assert.Equal(t, map[string]any{"region": "eu"}, call.Parameters[ContextParameter])
}

func TestRunner_CustomThreshold(t *testing.T) {
	threshold, err := version.ParseNumber("3.3.0")
	require.NoError(t, err)
	runner := NewProcedureRunner(nil, WithV2Threshold(threshold))

	assert.Equal(t, GetServersProcedure, runner.ProcedureFor(version.Parse("Neo4j/3.2.1")).Text)
	assert.Equal(t, GetServersV2Procedure, runner.ProcedureFor(version.Parse("Neo4j/3.3.0")).Text)

	// An unknown threshold keeps the default.
	runner = NewProcedureRunner(nil, WithV2Threshold(version.Unknown))
	assert.True(t, runner.SupportsV2(version.Parse("Neo4j/3.2.0")))
	assert.False(t, runner.SupportsV2(version.Parse("Neo4j/3.1.8")))
}

func TestProcedureCall_Shape(t *testing.T) {
	assert.Equal(t, ShapeV2, ProcedureCall{Text: GetServersV2Procedure}.Shape())
	assert.Equal(t, ShapeV1, ProcedureCall{Text: GetServersProcedure}.Shape())
	assert.Equal(t, "dbms.cluster.routing.getServersV2", ProcedureCall{Text: GetServersV2Procedure}.Name())
	assert.Equal(t, "v2", ShapeV2.String())
	assert.Equal(t, "unknown", Shape(0).String())
}
