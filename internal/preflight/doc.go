// Package preflight provides readiness checks for the filesystem paths and
// backends drugscreen depends on.
//
// These checks run in two contexts:
//   - "drugscreen serve" runs RunAll before starting and refuses to start
//     when a required check fails.
//   - "drugscreen preflight" prints every result as a table.
//
// Optional integrations (ntfy alerts) report Passed with a "Disabled" detail
// when they are not configured.
package preflight
