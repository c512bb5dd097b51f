// Package cluster implements routing-table discovery against a causal cluster.
//
// Discovery happens in two steps. A ProcedureRunner inspects the version the
// connected server reported at handshake and selects the discovery procedure
// it supports:
//
//	server >= 3.2.0   CALL dbms.cluster.routing.getServersV2  {context: <map or NULL>}
//	server <  3.2.0   CALL dbms.cluster.routing.getServers    {}
//
// The legacy procedure takes no arguments, so a routing context is dropped
// when talking to an older server. An empty routing context is sent as NULL,
// never as an empty map.
//
// A RoutingTableParser then validates the single returned record and turns
// it into a RoutingTable. Zero records yield ErrNoRoutingServerAvailable, any
// other shape violation yields a *ProtocolError. Errors from the connection
// itself are returned exactly as the connection produced them.
//
// Discovery composes both steps and adds logging and metrics. Refresher
// caches the resulting table and rediscovers once it is stale for the
// access mode it serves.
package cluster
