// Package rotation is the scheduling core of Scene Rotator.
//
// It cycles the "current scene" of a host compositor (OBS Studio) through the
// scenes of one named group at a fixed interval.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                 Scheduler (scheduler.go)                      │
//	│  ticker goroutine ─▶ advance cursor ─▶ Dispatch(request)       │
//	│        │                                   │                  │
//	│        ▼                                   ▼                  │
//	│  ┌──────────────┐               ┌──────────────────────┐      │
//	│  │  GroupStore  │               │ SwitchExecutor        │      │
//	│  │ (store.go)   │               │ (executor.go)         │      │
//	│  └──────────────┘               │  TaskQueue worker ─▶  │      │
//	│                                 │  SceneHost.Resolve    │      │
//	│                                 │  SceneHost.SetCurrent │      │
//	│                                 └──────────────────────┘      │
//	│                 ErrorReporter (reporter.go)                    │
//	│        single-slot last error, atomic publish                  │
//	└──────────────────────────────────────────────────────────────┘
//
// # Rotation policy
//
// The cursor advances before a switch is attempted. A scene that no longer
// resolves on the host is reported and skipped; the next tick moves on
// regardless. Rotation liveness is preferred over delivery of any single
// switch.
//
// # Thread Safety
//
// GroupStore, Scheduler, SwitchExecutor, TaskQueue and ErrorReporter are safe
// for concurrent use. Scheduler state is mutated only under its mutex, from
// the ticker goroutine or from API calls. Switches run on the TaskQueue
// worker, never on the ticker goroutine.
//
// # Usage
//
//	store := rotation.NewGroupStore()
//	reporter := rotation.NewErrorReporter(log)
//	queue := rotation.NewTaskQueue(16, log)
//	go queue.Run(ctx)
//
//	executor := rotation.NewSwitchExecutor(obsClient, queue, reporter, log)
//	scheduler := rotation.NewScheduler(store, executor, reporter,
//	    rotation.WithInterval(30*time.Second),
//	    rotation.WithLogger(log),
//	)
//
//	_ = store.AddGroup("intermission")
//	_ = store.AddScene("intermission", "BRB")
//	_ = scheduler.SetActiveGroup("intermission")
//	scheduler.Start()
package rotation
