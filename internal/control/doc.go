// Package control exposes rotation over MQTT.
//
// Commands arrive on {prefix}/command/{name} with a JSON body:
//
//	enable       {"group": "optional"}   start rotation, optionally selecting a group first
//	disable      {}                      stop rotation
//	interval     {"interval_ms": 15000}  change the period
//	active       {"group": "Show"}       select a group; "" clears the selection
//	switch       {"scene": "Intro"}      manual switch through the executor
//	clear_error  {}                      empty the last-error slot
//
// Every rotation event is republished on {prefix}/event/{channel}, and a
// retained {prefix}/status carries the scheduler state and last error so
// dashboards pick it up on connect.
//
// Outbound messages go through a bounded queue drained by Run, so a slow
// broker never blocks the scheduler or the host task queue.
package control
