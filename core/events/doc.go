// Package events defines the planning events emitted on the event bus.
//
// Available event types:
//   - RunCompleted: a request was scheduled and recorded
//   - PlanFailed: a request was refused before scheduling
package events
