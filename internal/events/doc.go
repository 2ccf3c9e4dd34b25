// Package events provides a minimal in-process event system used to
// decouple pipeline stages from the task runner: a completed stage
// emits a TaskRequestEvent and a registered handler turns it into the
// next stage's task.
package events
