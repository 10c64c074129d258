// Package alerts raises operator alerts when notification delivery fails or
// data looks inconsistent.
//
// Alerts are always written to the structured log. When an ntfy topic is
// configured they are also pushed there, with severity mapped onto ntfy
// priorities so critical failures page loudly while lower severities stay quiet.
package alerts
