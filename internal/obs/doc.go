// Package obs talks to OBS Studio through obs-websocket (protocol v5) and
// serves as the scene host for rotation.
//
// # Protocol
//
// Every frame is a JSON envelope {"op": N, "d": {...}}:
//
//	0 Hello       server → client, carries the auth challenge
//	1 Identify    client → server, rpcVersion + auth string + event mask
//	2 Identified  server → client, session ready
//	5 Event       server → client
//	6 Request     client → server, correlated by requestId
//	7 Response    server → client
//
// The auth string is base64(sha256(base64(sha256(password + salt)) + challenge)).
//
// # Scene cache
//
// GetSceneList results are cached for a configurable TTL. Scene events
// (created, removed, renamed, list changed) invalidate the cache so a
// deleted scene is reported as not found on the next resolve.
//
// # Reconnects
//
// Supervisor owns the connection. It dials, waits for the connection to
// drop, and redials with exponential backoff. While disconnected every
// host call fails with rotation.ErrHostUnavailable.
package obs
