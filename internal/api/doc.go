// Package api provides the HTTP REST API and WebSocket event stream for
// the scene rotator.
//
// It replaces the overlay's dock widgets: rotation on/off, interval,
// active group, group editing, manual scene buttons and the last-error
// label all map to endpoints under /api/v1. Every handler calls straight
// into the rotation package; none of them touch OBS directly, so scene
// switches always go through the executor and its task queue.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Authentication
//
// When security.jwt.secret is set every route except /health requires a
// bearer token (see package auth). Viewers may read; operators may also
// mutate. With no secret the API is open, which suits a loopback bind.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
