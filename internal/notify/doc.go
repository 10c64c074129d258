// Package notify decides which notification stage a saved test record has
// reached and delivers it.
//
// The pipeline runs once per save (inline) or once per outbox entry (worker):
// Decide picks at most one eligible stage, the resolver collects recipients,
// a Renderer supplies subject and HTML per audience, the document service
// supplies attachments, and the Dispatcher sends client-first then referral
// emails with pacing and per-recipient failure isolation. A successful stage
// is appended to stage_history, which is a set, so re-evaluating an unchanged
// record never sends the same stage twice.
package notify
