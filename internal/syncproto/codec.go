package syncproto

import (
	"encoding/binary"
	"fmt"
)

// Tag is a raw 4-byte record identifier. Tags are compared as byte
// patterns, never parsed as text or integers.
type Tag [4]byte

func (t Tag) String() string {
	return fmt.Sprintf("%q", t[:])
}

var (
	TagStat = Tag{'S', 'T', 'A', 'T'}
	TagList = Tag{'L', 'I', 'S', 'T'}
	TagSend = Tag{'S', 'E', 'N', 'D'}
	TagRecv = Tag{'R', 'E', 'C', 'V'}
	TagDent = Tag{'D', 'E', 'N', 'T'}
	TagData = Tag{'D', 'A', 'T', 'A'}
	TagDone = Tag{'D', 'O', 'N', 'E'}
	TagOkay = Tag{'O', 'K', 'A', 'Y'}
	TagFail = Tag{'F', 'A', 'I', 'L'}
)

const (
	// MaxChunk is the largest DATA payload either side may send.
	MaxChunk = 64 * 1024

	// StatBodyLen is mode, size and mtime after a STAT tag.
	StatBodyLen = 12
	// DentHeaderLen is mode, size, mtime and name length after a DENT tag.
	DentHeaderLen = 16
	// ChunkHeaderLen is a tag plus a little-endian u32 size.
	ChunkHeaderLen = 8

	// maxNameLen bounds a DENT name or FAIL message before allocating.
	maxNameLen = MaxChunk
)

// Command is a sync-mode request.
type Command int

const (
	CmdSend Command = iota
	CmdRecv
	CmdList
	CmdStat
)

// Tag returns the 4-byte request tag.
func (c Command) Tag() Tag {
	switch c {
	case CmdSend:
		return TagSend
	case CmdRecv:
		return TagRecv
	case CmdList:
		return TagList
	default:
		return TagStat
	}
}

func (c Command) String() string {
	t := c.Tag()
	return string(t[:])
}

// EncodeRequest builds tag + u32 LE path length + raw path bytes. The path
// is not validated here.
func EncodeRequest(cmd Command, wirePath string) []byte {
	tag := cmd.Tag()
	buf := make([]byte, 8+len(wirePath))
	copy(buf[0:4], tag[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(wirePath)))
	copy(buf[8:], wirePath)
	return buf
}

// DecodeStatBody decodes the 12 bytes following a STAT tag.
func DecodeStatBody(b [StatBodyLen]byte) StatInfo {
	return StatInfo{
		Mode:  binary.LittleEndian.Uint32(b[0:4]),
		Size:  binary.LittleEndian.Uint32(b[4:8]),
		MTime: binary.LittleEndian.Uint32(b[8:12]),
	}
}

// EncodeStat builds a complete STAT response record.
func EncodeStat(s StatInfo) []byte {
	buf := make([]byte, 4+StatBodyLen)
	copy(buf[0:4], TagStat[:])
	binary.LittleEndian.PutUint32(buf[4:8], s.Mode)
	binary.LittleEndian.PutUint32(buf[8:12], s.Size)
	binary.LittleEndian.PutUint32(buf[12:16], s.MTime)
	return buf
}

// DecodeDentHeader decodes the 16 bytes following a DENT tag. The returned
// Dent has no name yet; nameLen bytes of name follow on the wire.
func DecodeDentHeader(b [DentHeaderLen]byte) (d Dent, nameLen uint32) {
	d = Dent{
		Mode:  binary.LittleEndian.Uint32(b[0:4]),
		Size:  binary.LittleEndian.Uint32(b[4:8]),
		MTime: binary.LittleEndian.Uint32(b[8:12]),
	}
	return d, binary.LittleEndian.Uint32(b[12:16])
}

// EncodeDent builds a complete DENT record including its name.
func EncodeDent(d Dent) []byte {
	buf := make([]byte, 4+DentHeaderLen+len(d.Name))
	copy(buf[0:4], TagDent[:])
	binary.LittleEndian.PutUint32(buf[4:8], d.Mode)
	binary.LittleEndian.PutUint32(buf[8:12], d.Size)
	binary.LittleEndian.PutUint32(buf[12:16], d.MTime)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(d.Name)))
	copy(buf[20:], d.Name)
	return buf
}

// EncodeChunkHeader builds a tag + u32 LE size header.
func EncodeChunkHeader(tag Tag, size uint32) [ChunkHeaderLen]byte {
	var b [ChunkHeaderLen]byte
	copy(b[0:4], tag[:])
	binary.LittleEndian.PutUint32(b[4:8], size)
	return b
}

// DecodeChunkHeader splits an 8-byte header into its tag and size.
func DecodeChunkHeader(b [ChunkHeaderLen]byte) (Tag, uint32) {
	var tag Tag
	copy(tag[:], b[0:4])
	return tag, binary.LittleEndian.Uint32(b[4:8])
}

// EncodeFail builds a FAIL record: tag + u32 LE length + message.
func EncodeFail(msg string) []byte {
	hdr := EncodeChunkHeader(TagFail, uint32(len(msg)))
	return append(hdr[:], msg...)
}
