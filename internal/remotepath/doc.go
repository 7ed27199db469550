// Package remotepath validates device-side paths before they reach the wire.
//
// Two layers exist. CheckWire holds for every path the sync codec encodes,
// because an oversized path or an embedded newline corrupts the
// length-prefixed framing of some requests. Validator adds the local
// policy: no double slashes, never the root itself, and absolute paths must
// stay under the configured sandbox root.
package remotepath
