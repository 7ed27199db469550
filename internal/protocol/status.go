package protocol

const (
	tagOkay = "OKAY"
	tagFail = "FAIL"

	// StatusLen is the size of a response status tag.
	StatusLen = 4
	// HexLengthLen is the size of a hex length header.
	HexLengthLen = 4
	// MaxRequestLen is the largest request a 4-hex-digit header can describe.
	MaxRequestLen = 0xffff
)

// StatusKind distinguishes OKAY from FAIL.
type StatusKind int

const (
	StatusOkay StatusKind = iota
	StatusFail
)

// DecodeStatus maps a 4-byte tag to a status kind. The FAIL message is read
// separately because it follows the tag on the wire.
func DecodeStatus(tag [StatusLen]byte) (StatusKind, error) {
	switch string(tag[:]) {
	case tagOkay:
		return StatusOkay, nil
	case tagFail:
		return StatusFail, nil
	default:
		return 0, Malformed("status", "unexpected tag %q", tag[:])
	}
}

// ParseHexLength decodes a 4-digit ASCII hex length header. Both cases of
// hex digits are accepted; anything else is malformed.
func ParseHexLength(b [HexLengthLen]byte) (int, error) {
	n := 0
	for _, c := range b {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, Malformed("length", "invalid hex header %q", b[:])
		}
		n = n<<4 | int(v)
	}
	return n, nil
}
