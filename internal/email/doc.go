// Package email delivers rendered messages through a transactional mail API.
//
// Two transports exist: the HTTP transport posts JSON to a Resend-compatible
// endpoint, and the log transport records each message without sending it,
// which is useful for dry runs and local development.
package email
