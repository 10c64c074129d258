// Package config loads, normalizes, and validates drugscreen configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional dotenv file, and honours
// environment fallbacks such as DRUGSCREEN_EMAIL_API_KEY. The Config type
// centralizes the data directory, document backend, mail transport, alerting,
// and notification dispatch settings so the CLI and the hook server discover
// them in one pass.
//
// Process-wide switches such as email test mode, the fixed test address, and
// the inter-send delay live here and are injected into the dispatcher at
// construction time.
package config
