// Package api provides the HTTP REST API and WebSocket server for the
// scheduler.
//
// Routes live under /api/v1:
//
//	GET    /devices          every device keyed by ID
//	POST   /control          execute a command now
//	POST   /schedule         store a command for later
//	GET    /schedules        pending entries with device names
//	DELETE /schedule/{id}    cancel an entry
//	GET    /health           infrastructure health
//	GET    /metrics          Prometheus exposition
//	GET    /audit            execution and state history
//	GET    /ws               event stream
//
// Error bodies use the shape {"status":"error","code":...,"message":...}.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
