// Package panel serves the browser control panel.
//
// The panel is a single static page that drives the REST API and listens on
// the event WebSocket: pick a group, edit its scenes, set the interval,
// start and stop rotation, and see the last error. It replaces the dock
// widget an in-process OBS plugin would draw.
//
// Assets are embedded with go:embed. Handler can instead serve a directory
// from disk, which is convenient while editing the page.
package panel
