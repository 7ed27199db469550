package syncproto

import (
	"os"
	"time"
)

// POSIX file type bits.
const (
	sIFMT   uint32 = 0o170000
	sIFSOCK uint32 = 0o140000
	sIFLNK  uint32 = 0o120000
	sIFREG  uint32 = 0o100000
	sIFBLK  uint32 = 0o060000
	sIFDIR  uint32 = 0o040000
	sIFCHR  uint32 = 0o020000
	sIFIFO  uint32 = 0o010000
)

// Type bits for building modes, as servers and test doubles do.
const (
	ModeRegular   = sIFREG
	ModeDirectory = sIFDIR
	ModeSymlink   = sIFLNK
)

// FileType is the POSIX type encoded in a mode.
type FileType int

const (
	TypeOther FileType = iota
	TypeFile
	TypeDirectory
	TypeLink
	TypeBlockDevice
	TypeCharDevice
	TypeSocket
	TypeFifo
)

var fileTypeNames = [...]string{
	TypeOther:       "other",
	TypeFile:        "file",
	TypeDirectory:   "directory",
	TypeLink:        "link",
	TypeBlockDevice: "block-device",
	TypeCharDevice:  "char-device",
	TypeSocket:      "socket",
	TypeFifo:        "fifo",
}

func (t FileType) String() string {
	if t < 0 || int(t) >= len(fileTypeNames) {
		return "other"
	}
	return fileTypeNames[t]
}

// MarshalText renders the type name in JSON and YAML output.
func (t FileType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FileTypeOf masks the type bits of mode.
func FileTypeOf(mode uint32) FileType {
	switch mode & sIFMT {
	case sIFSOCK:
		return TypeSocket
	case sIFLNK:
		return TypeLink
	case sIFREG:
		return TypeFile
	case sIFBLK:
		return TypeBlockDevice
	case sIFDIR:
		return TypeDirectory
	case sIFCHR:
		return TypeCharDevice
	case sIFIFO:
		return TypeFifo
	default:
		return TypeOther
	}
}

// StatInfo is the payload of a STAT response.
type StatInfo struct {
	Mode  uint32 `json:"mode" yaml:"mode"`
	Size  uint32 `json:"size" yaml:"size"`
	MTime uint32 `json:"mtime" yaml:"mtime"`
}

// FileType derives the file type from Mode.
func (s StatInfo) FileType() FileType {
	return FileTypeOf(s.Mode)
}

// Exists reports whether the server described a real file. Servers answer a
// STAT for a missing path with an all-zero record.
func (s StatInfo) Exists() bool {
	return s.FileType() != TypeOther
}

// Perm returns the permission bits as an os.FileMode.
func (s StatInfo) Perm() os.FileMode {
	return os.FileMode(s.Mode & 0o777)
}

// ModTime converts MTime to a time.Time.
func (s StatInfo) ModTime() time.Time {
	return time.Unix(int64(s.MTime), 0)
}

// Dent is one directory entry streamed by LIST.
type Dent struct {
	Mode  uint32 `json:"mode" yaml:"mode"`
	Size  uint32 `json:"size" yaml:"size"`
	MTime uint32 `json:"mtime" yaml:"mtime"`
	Name  string `json:"name" yaml:"name"`
}

// FileType derives the file type from Mode.
func (d Dent) FileType() FileType {
	return FileTypeOf(d.Mode)
}

// IsDotEntry reports whether the entry is "." or "..". LIST returns them;
// tree walks must skip them.
func (d Dent) IsDotEntry() bool {
	return d.Name == "." || d.Name == ".."
}
