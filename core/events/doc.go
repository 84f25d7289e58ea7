// Package events defines the events emitted on the event bus.
//
// Available event types:
//   - RunStarted: a dispatch run selected its candidate pool
//   - SubResultEvent: one sub-request produced its result
//   - RunFinished: a dispatch run returned its outcome
//   - DirectorySynced: the responder directory finished a refresh attempt
package events
