// Package watch implements the polling-and-dispatch engine: it discovers new
// playlist items, fans them out to the subscribed chats whose cursor is
// behind, sends notifications, and reconciles the persisted cursor with the
// sent message so a partial failure can never silently lose or duplicate a
// delivery.
//
// The engine is a single cooperative worker: one playlist at a time, one item
// at a time, one workunit at a time. Serializing all cursor writes removes
// any need for per-subscription locking.
package watch
