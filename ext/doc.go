// Package ext defines the extension system for funnel.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error {
//	    log.Printf("task %s completed in %s", t.Name(), elapsed)
//	    return nil
//	}
//
// # Task Lifecycle Hooks
//
//   - [TaskAdmitted] — the admission gate handed a task to the queue
//   - [TaskStarted] — a worker activation began executing the task
//   - [TaskCompleted] — the task finished successfully
//   - [TaskFailed] — the task's body returned an error (terminal; funnel never retries)
//
// # Other Hooks
//
//   - [Shutdown] — the dispatcher is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
