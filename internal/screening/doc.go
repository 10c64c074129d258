// Package screening classifies drug-screen results against a client's declared
// medications.
//
// The package is pure: it performs no I/O and holds no state. Classify maps a
// tuple of substance counts to a screen result through an ordered rule table,
// Compute derives those counts from detected substances and a medication
// snapshot (optionally scoped to a panel), and ResolveConfirmation reconciles
// confirmation sub-test outcomes into a final status. A positive breathalyzer
// reading overrides any passing result in every path.
package screening
