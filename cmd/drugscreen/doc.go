// Command drugscreen is the operator CLI and server for the drug screening
// notification service.
//
// Operator commands (import, classify, test, recipients, preflight) open the
// database directly and log to stderr so their stdout stays parseable.
// "drugscreen serve" runs the HTTP API and, in worker dispatch mode, the
// outbox worker. A lock file in the data directory keeps a single server per
// database.
package main
