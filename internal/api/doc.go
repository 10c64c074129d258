// Package api exposes the screening workflow over HTTP.
//
// The router is built on chi. Every route except /healthz and /metrics
// requires the configured bearer token when one is set.
//
// # Routes
//
//	POST /hooks/tests/{id}/saved[?suppress_reentry=true]  save callback for external writers
//	GET  /tests/{id}                                      record with notification history
//	POST /tests/{id}/screen                               record an initial screen
//	POST /tests/{id}/decision                             accept or request confirmation
//	POST /tests/{id}/confirmation                         lab confirmation results
//	POST /tests/{id}/inconclusive                         mark the test inconclusive
//	POST /tests/{id}/notifications                        enable or disable notifications
//	POST /tests/{id}/documents?kind=screening|confirmation upload and attach a document
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds.
// Error markers from the services package map onto HTTP status codes in
// statusFor.
package api
