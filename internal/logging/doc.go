// Package logging configures the zerolog console logger used by the CLI
// and by sessions, with profile defaults and ADBX_LOG_* overrides.
package logging
