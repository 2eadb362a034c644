// Package audit keeps a queryable history of rotation events in SQLite.
//
// A Recorder is attached as a rotation.Broadcaster. It turns switch results,
// scheduler state changes and reported errors into Entry rows and writes them
// from its own goroutine, so recording never slows the scheduler or the host
// task queue. Ticks are not recorded; every tick already ends in a switch
// result.
//
// History is only available with the sqlite storage backend.
package audit
