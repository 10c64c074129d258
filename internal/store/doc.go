// Package store persists clients, referral presets, panels, documents, and
// test records in SQLite.
//
// Besides the records themselves it owns two pieces of notification state:
// stage_history, a monotonic set of (test, stage) pairs that makes each stage
// fire at most once, and outbox, which holds tests whose latest save has not
// yet been evaluated by the notification pipeline. SaveTest enqueues an outbox
// row in the same transaction as the record write unless the caller asks for
// re-entry suppression; RecordStage never enqueues.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt the new schema.
package store
