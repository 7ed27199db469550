// Package syncproto implements the binary sync sub-protocol entered with
// the "sync:" service.
//
// Every integer is a little-endian u32. Requests are a 4-byte tag followed by
// a length-prefixed path. Responses are fixed-size records decoded at
// explicit byte offsets:
//
//	STAT  -> "STAT" mode size mtime | "FAIL" len msg | "DONE"
//	LIST  -> ("DENT" mode size mtime namelen name)* "DONE"
//	SEND  -> ("DATA" len bytes)* "DONE" mtime, then "OKAY" | "FAIL" len msg
//	RECV  -> ("DATA" len bytes)* "DONE"
//
// A Conn serves one request and then reports StateClosed; the session layer
// reconnects before the next one.
package syncproto
