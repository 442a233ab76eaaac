// Package logging centralizes slog construction and the structured field
// conventions used across marketpipe. Stage workers, the gateway, and the
// CLI all log through handlers built here so console and JSON output stay
// consistent.
package logging
