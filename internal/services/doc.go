// Package services defines shared utilities consumed by the screening,
// notification, and storage packages.
//
// Key responsibilities:
//   - Context helpers that stamp test identifiers, notification stages, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (invariant violations, missing prerequisites, data integrity
//     problems, transport errors) with errors.Is.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the module.
package services
