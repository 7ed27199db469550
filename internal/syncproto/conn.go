package syncproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/aguxez/adbx/internal/protocol"
	"github.com/aguxez/adbx/internal/remotepath"
)

// DefaultFileMode is the permission sent with every SEND unless the caller
// overrides it. It is not derived from the source file.
const DefaultFileMode os.FileMode = 0o644

// ErrSyncClosed is returned when a second request is issued on a sync
// connection. The underlying connection must be reconnected first.
var ErrSyncClosed = errors.New("sync: connection already used, reconnect before the next request")

// State tracks where a sync connection is in its single request.
type State int

const (
	StateIdle State = iota
	StateAwaitingTag
	StateStreamingRecords
	StateReceivingData
	StateSendingData
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTag:
		return "awaiting-tag"
	case StateStreamingRecords:
		return "streaming-records"
	case StateReceivingData:
		return "receiving-data"
	case StateSendingData:
		return "sending-data"
	default:
		return "closed"
	}
}

// Conn speaks the sync sub-protocol on a connection that has already
// accepted "sync:". It carries exactly one request; after the terminal
// record it is Closed.
type Conn struct {
	s     protocol.Stream
	state State
	now   func() time.Time
}

// NewConn wraps a stream that is in sync mode.
func NewConn(s protocol.Stream) *Conn {
	return &Conn{s: s, now: time.Now}
}

// SetClock overrides the time source used for the SEND modification time.
func (c *Conn) SetClock(now func() time.Time) {
	c.now = now
}

// State returns the current state.
func (c *Conn) State() State {
	return c.state
}

func (c *Conn) begin(cmd Command, wirePath string, next State) error {
	if c.state != StateIdle {
		return ErrSyncClosed
	}
	c.state = StateAwaitingTag
	if err := c.s.WriteAll(EncodeRequest(cmd, wirePath)); err != nil {
		c.state = StateClosed
		return protocol.Wrap("write "+cmd.String()+" request", err)
	}
	c.state = next
	return nil
}

func (c *Conn) finish() {
	c.state = StateClosed
}

func (c *Conn) readTag(op string) (Tag, error) {
	var tag Tag
	if err := c.s.ReadFull(tag[:]); err != nil {
		return tag, protocol.Wrap(op, err)
	}
	return tag, nil
}

func (c *Conn) readUint32(op string) (uint32, error) {
	var b [4]byte
	if err := c.s.ReadFull(b[:]); err != nil {
		return 0, protocol.Wrap(op, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// readString reads n bytes of UTF-8.
func (c *Conn) readString(context string, n uint32) (string, error) {
	if n > maxNameLen {
		return "", protocol.Malformed(context, "length %d exceeds %d", n, maxNameLen)
	}
	buf := make([]byte, n)
	if err := c.s.ReadFull(buf); err != nil {
		return "", protocol.Wrap("read "+context, err)
	}
	if !utf8.Valid(buf) {
		return "", protocol.Malformed(context, "not valid UTF-8")
	}
	return string(buf), nil
}

// readFail consumes the length-prefixed message after a FAIL tag.
func (c *Conn) readFail() error {
	n, err := c.readUint32("read fail length")
	if err != nil {
		return err
	}
	return c.failMessage(n)
}

func (c *Conn) failMessage(n uint32) error {
	msg, err := c.readString("fail message", n)
	if err != nil {
		return err
	}
	return &protocol.ServerError{Message: msg}
}

// Stat requests the metadata of path. A DONE answer yields
// protocol.ErrEndOfStream, which callers treat as "absent".
func (c *Conn) Stat(path string) (StatInfo, error) {
	if err := remotepath.CheckWire(path); err != nil {
		return StatInfo{}, err
	}
	if err := c.begin(CmdStat, path, StateAwaitingTag); err != nil {
		return StatInfo{}, err
	}
	defer c.finish()

	tag, err := c.readTag("read stat tag")
	if err != nil {
		return StatInfo{}, err
	}
	switch tag {
	case TagStat:
		var body [StatBodyLen]byte
		if err := c.s.ReadFull(body[:]); err != nil {
			return StatInfo{}, protocol.Wrap("read stat body", err)
		}
		return DecodeStatBody(body), nil
	case TagFail:
		return StatInfo{}, c.readFail()
	case TagDone:
		return StatInfo{}, protocol.ErrEndOfStream
	default:
		return StatInfo{}, protocol.Malformed("stat", "unexpected tag %s", tag)
	}
}

// List starts a LIST of path. Entries are consumed through the returned
// scanner; "." and ".." are included.
func (c *Conn) List(path string) (*DentScanner, error) {
	if err := remotepath.CheckWire(path); err != nil {
		return nil, err
	}
	if err := c.begin(CmdList, path, StateStreamingRecords); err != nil {
		return nil, err
	}
	return &DentScanner{c: c}, nil
}

// ListAll drains a LIST into a slice.
func (c *Conn) ListAll(path string) ([]Dent, error) {
	sc, err := c.List(path)
	if err != nil {
		return nil, err
	}
	var dents []Dent
	for sc.Next() {
		dents = append(dents, sc.Dent())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dents, nil
}

// readDent reads one record of a LIST stream. The DONE sentinel is reported
// as protocol.ErrEndOfStream.
func (c *Conn) readDent() (Dent, error) {
	tag, err := c.readTag("read dent tag")
	if err != nil {
		return Dent{}, err
	}
	switch tag {
	case TagDent:
		var hdr [DentHeaderLen]byte
		if err := c.s.ReadFull(hdr[:]); err != nil {
			return Dent{}, protocol.Wrap("read dent header", err)
		}
		d, nameLen := DecodeDentHeader(hdr)
		name, err := c.readString("dent name", nameLen)
		if err != nil {
			return Dent{}, err
		}
		d.Name = name
		return d, nil
	case TagDone:
		return Dent{}, protocol.ErrEndOfStream
	case TagFail:
		return Dent{}, c.readFail()
	default:
		return Dent{}, protocol.Malformed("list", "unexpected tag %s", tag)
	}
}

// DentScanner iterates a LIST stream. Next returns false both at the DONE
// sentinel and on failure; Err distinguishes the two.
type DentScanner struct {
	c    *Conn
	dent Dent
	err  error
	done bool
}

// Next advances to the next entry.
func (sc *DentScanner) Next() bool {
	if sc.done {
		return false
	}
	d, err := sc.c.readDent()
	if err != nil {
		sc.done = true
		sc.c.finish()
		if !errors.Is(err, protocol.ErrEndOfStream) {
			sc.err = err
		}
		return false
	}
	sc.dent = d
	return true
}

// Dent returns the current entry.
func (sc *DentScanner) Dent() Dent {
	return sc.dent
}

// Err returns the failure that stopped the scan, or nil at a clean DONE.
func (sc *DentScanner) Err() error {
	return sc.err
}

// Send streams r to path on the device with the given permission bits and
// returns the number of bytes sent.
func (c *Conn) Send(r io.Reader, path string, mode os.FileMode) (int64, error) {
	if err := remotepath.CheckWire(path); err != nil {
		return 0, err
	}
	wirePath := fmt.Sprintf("%s,%#o", path, mode.Perm())
	if err := c.begin(CmdSend, wirePath, StateSendingData); err != nil {
		return 0, err
	}
	defer c.finish()

	var sent int64
	buf := make([]byte, ChunkHeaderLen+MaxChunk)
	for {
		n, rerr := r.Read(buf[ChunkHeaderLen:])
		if n > 0 {
			hdr := EncodeChunkHeader(TagData, uint32(n))
			copy(buf[:ChunkHeaderLen], hdr[:])
			if err := c.s.WriteAll(buf[:ChunkHeaderLen+n]); err != nil {
				return sent, protocol.Wrap("write data chunk", err)
			}
			sent += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sent, fmt.Errorf("failed to read local source: %w", rerr)
		}
	}

	done := EncodeChunkHeader(TagDone, uint32(c.now().Unix()))
	if err := c.s.WriteAll(done[:]); err != nil {
		return sent, protocol.Wrap("write done", err)
	}

	c.state = StateAwaitingTag
	tag, err := c.readTag("read send status")
	if err != nil {
		return sent, err
	}
	switch tag {
	case TagOkay:
		return sent, nil
	case TagFail:
		return sent, c.readFail()
	default:
		return sent, protocol.Malformed("send", "unexpected status %s", tag)
	}
}

// Recv copies the remote file at path into w and returns the byte count.
// A DONE header or a zero-length DATA chunk ends the transfer. Bytes already
// written to w are not rolled back on failure.
func (c *Conn) Recv(path string, w io.Writer) (int64, error) {
	if err := remotepath.CheckWire(path); err != nil {
		return 0, err
	}
	if err := c.begin(CmdRecv, path, StateReceivingData); err != nil {
		return 0, err
	}
	defer c.finish()

	var received int64
	buf := make([]byte, MaxChunk)
	for {
		var hdr [ChunkHeaderLen]byte
		if err := c.s.ReadFull(hdr[:]); err != nil {
			return received, protocol.Wrap("read chunk header", err)
		}
		tag, size := DecodeChunkHeader(hdr)
		switch tag {
		case TagDone:
			return received, nil
		case TagData:
			if size == 0 {
				return received, nil
			}
			if size > MaxChunk {
				return received, protocol.Malformed("recv", "chunk of %d bytes exceeds %d", size, MaxChunk)
			}
			chunk := buf[:size]
			if err := c.s.ReadFull(chunk); err != nil {
				return received, protocol.Wrap("read chunk", err)
			}
			if _, err := w.Write(chunk); err != nil {
				return received, fmt.Errorf("failed to write local sink: %w", err)
			}
			received += int64(size)
		case TagFail:
			return received, c.failMessage(size)
		default:
			return received, protocol.Malformed("recv", "unexpected tag %s", tag)
		}
	}
}
