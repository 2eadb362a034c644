// Package discovery advertises the rotator's HTTP API on the local network
// with mDNS/DNS-SD, so control surfaces can find it without a configured
// address.
//
// The service type is _scenerotator._tcp. TXT records describe the API:
//
//	version=1.2.0
//	api=/api/v1
//	ws=/api/v1/ws
//	auth=true|false
//	panel=true|false
package discovery
