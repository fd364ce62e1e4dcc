// Package audit buffers identity events and hands them to a Sink off the
// request path.
//
// The Dispatcher owns one goroutine, started by NewDispatcher and stopped by
// Close, which drains whatever is still queued. With DropIfFull set a full
// buffer drops the event and counts it; otherwise Emit blocks until there is
// room or the caller's context ends.
//
// Which events exist, and when they fire, is decided by the engine. This
// package never filters.
package audit
