package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/clusterroute/internal/logging"
)

func TestServer_CloseBeforeStart(t *testing.T) {
	s := NewServerWithRegistry(":0", prometheus.NewRegistry())
	assert.NoError(t, s.Close())
	assert.Equal(t, ":0", s.Addr())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDiscoveryMetricsWithRegistry(reg)
	m.RecordDiscovery("dbms.cluster.routing.getServers", 0.003, "")
	m.RecordRoutingTable(3, 0, 0)

	s := NewServerWithRegistry("127.0.0.1:0", reg).WithLogger(logging.NewNop())
	require.NoError(t, s.Start())
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr() + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `clusterroute_discovery_requests_total{procedure="dbms.cluster.routing.getServers",status="success"} 1`)
	assert.Contains(t, string(body), `clusterroute_routing_table_servers{role="routers"} 3`)
}

func TestServer_StartFailsOnBadAddress(t *testing.T) {
	s := NewServerWithRegistry("not-an-address", prometheus.NewRegistry()).WithLogger(logging.NewNop())
	assert.Error(t, s.Start())
}
