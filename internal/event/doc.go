// Package event provides a pub-sub event bus that decouples the executor and
// watcher from the components that observe them (logging, metrics, the watch
// dashboard, and CLI output).
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
// Run lifecycle:
//   - [RunStartedEvent] ("run.started")
//   - [RunFinishedEvent] ("run.finished")
//
// Task lifecycle:
//   - [TaskStartedEvent] ("task.started")
//   - [TaskFinishedEvent] ("task.finished")
//
// Watch:
//   - [FileChangedEvent] ("watch.changed")
//   - [WatchTriggeredEvent] ("watch.triggered")
//
// # Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers are called synchronously on
// the publishing goroutine, so the executor publishes task events from
// whichever goroutine finished the task; handlers must therefore be safe for
// concurrent calls. A panicking handler is recovered and logged and does not
// prevent delivery to the remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeTaskFinished, func(e event.Event) {
//	    finished := e.(event.TaskFinishedEvent)
//	    fmt.Printf("%s: %s\n", finished.Task, finished.Outcome)
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) { ... })
//	bus.Unsubscribe(id)
package event
