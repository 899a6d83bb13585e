// Package watch delivers newly created files of a directory to a handler.
//
// A [Watcher] subscribes to an [EventSource] (fsnotify in production),
// filters the events down to candidate files and calls the handler for
// each of them from a single goroutine, so handler calls never overlap.
// [Watcher.Stop] is a barrier: once it returns the handler is not called
// again.
package watch
