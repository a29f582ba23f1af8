// Package runctx propagates a per-task diagnostic context across the
// suspension and resumption boundaries of cooperatively scheduled tasks.
//
// Cooperative tasks are multiplexed over a bounded pool of workers while the
// ambient diagnostic context read by log statements is per-worker, not
// per-task. Without propagation a task's context either leaks into unrelated
// tasks sharing the same worker or is lost when the task migrates workers
// across a suspension point. runctx solves this with a propagation element
// (package mdc) that a scheduler installs before every resumption and
// unconditionally restores after every suspension, completion, or failure.
//
// Package sched provides a worker-pool host runtime that applies the
// install/restore pair around every task segment. Package temporal carries
// the same diagnostic context through Temporal workflow headers. Package
// stream maps model-output stream events to wire records, and package
// telemetry connects the ambient state to structured logging.
package runctx
