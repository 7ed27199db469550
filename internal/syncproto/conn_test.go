package syncproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aguxez/adbx/internal/protocol"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays a canned server reply and records what the client wrote.
type scripted struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newScripted(parts ...[]byte) *scripted {
	return &scripted{in: bytes.NewReader(bytes.Join(parts, nil))}
}

func (s *scripted) WriteAll(p []byte) error {
	s.out.Write(p)
	return nil
}

func (s *scripted) ReadFull(buf []byte) error {
	_, err := io.ReadFull(s.in, buf)
	return err
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func request(tag, path string) []byte {
	return append(append([]byte(tag), le32(uint32(len(path)))...), path...)
}

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		mode uint32
		want FileType
	}{
		{0o100644, TypeFile},
		{0o040755, TypeDirectory},
		{0o120777, TypeLink},
		{0o060660, TypeBlockDevice},
		{0o020666, TypeCharDevice},
		{0o140755, TypeSocket},
		{0o010644, TypeFifo},
		{0, TypeOther},
		{0o170000, TypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileTypeOf(tt.mode), "mode %o", tt.mode)
	}
}

func TestFileTypeOf_DependsOnlyOnTypeBits(t *testing.T) {
	for typeBits := uint32(0); typeBits < 16; typeBits++ {
		base := FileTypeOf(typeBits << 12)
		for _, perm := range []uint32{0, 0o644, 0o755, 0o7777} {
			assert.Equal(t, base, FileTypeOf(typeBits<<12|perm))
		}
	}
}

func TestStatInfoHelpers(t *testing.T) {
	st := StatInfo{Mode: 0o100640, Size: 12, MTime: 1700000000}
	assert.True(t, st.Exists())
	assert.Equal(t, "file", st.FileType().String())
	assert.Equal(t, uint32(0o640), uint32(st.Perm()))
	assert.Equal(t, int64(1700000000), st.ModTime().Unix())
	assert.False(t, StatInfo{}.Exists())
}

func TestStat(t *testing.T) {
	want := StatInfo{Mode: 0o040771, Size: 3488, MTime: 1712345678}
	s := newScripted(EncodeStat(want))
	c := NewConn(s)

	got, err := c.Stat("/data/local/tmp")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, TypeDirectory, got.FileType())
	assert.Equal(t, request("STAT", "/data/local/tmp"), s.out.Bytes())
	assert.Equal(t, StateClosed, c.State())

	_, err = c.Stat("/data/local/tmp")
	assert.ErrorIs(t, err, ErrSyncClosed)
}

func TestStat_TerminalRecords(t *testing.T) {
	t.Run("fail", func(t *testing.T) {
		_, err := NewConn(newScripted(EncodeFail("permission denied"))).Stat("/x")
		msg, ok := protocol.IsServerError(err)
		require.True(t, ok)
		assert.Equal(t, "permission denied", msg)
	})

	t.Run("done is end of stream", func(t *testing.T) {
		_, err := NewConn(newScripted(TagDone[:])).Stat("/x")
		assert.ErrorIs(t, err, protocol.ErrEndOfStream)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := NewConn(newScripted([]byte("WHAT"))).Stat("/x")
		var me *protocol.MalformedError
		assert.True(t, errors.As(err, &me))
	})

	t.Run("short record", func(t *testing.T) {
		_, err := NewConn(newScripted(TagStat[:], []byte{1, 2})).Stat("/x")
		assert.ErrorIs(t, err, protocol.ErrTransport)
	})
}

func TestInvalidPathRejectedBeforeIO(t *testing.T) {
	s := newScripted()
	c := NewConn(s)

	_, err := c.Stat("")
	assert.ErrorIs(t, err, remotepath.ErrInvalidPath)
	_, err = c.Recv("/a\nb", io.Discard)
	assert.ErrorIs(t, err, remotepath.ErrInvalidPath)
	_, err = c.Send(strings.NewReader("x"), strings.Repeat("a", remotepath.MaxLen+1), DefaultFileMode)
	assert.ErrorIs(t, err, remotepath.ErrInvalidPath)

	assert.Zero(t, s.out.Len())
	assert.Equal(t, StateIdle, c.State())
}

func TestList(t *testing.T) {
	entries := []Dent{
		{Mode: 0o040755, Size: 4096, MTime: 1, Name: "."},
		{Mode: 0o040755, Size: 4096, MTime: 2, Name: ".."},
		{Mode: 0o100644, Size: 5, MTime: 3, Name: "b.txt"},
		{Mode: 0o040755, Size: 4096, MTime: 4, Name: "c"},
		{Mode: 0o120777, Size: 7, MTime: 5, Name: "link → target"},
	}
	var parts [][]byte
	for _, d := range entries {
		parts = append(parts, EncodeDent(d))
	}
	parts = append(parts, TagDone[:])

	s := newScripted(parts...)
	c := NewConn(s)
	got, err := c.ListAll("/data/local/tmp/a")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.True(t, got[0].IsDotEntry())
	assert.True(t, got[1].IsDotEntry())
	assert.False(t, got[2].IsDotEntry())
	assert.Equal(t, request("LIST", "/data/local/tmp/a"), s.out.Bytes())
	assert.Equal(t, StateClosed, c.State())
}

func TestList_FailHaltsStream(t *testing.T) {
	first := Dent{Mode: 0o100644, Size: 1, MTime: 1, Name: "ok"}
	s := newScripted(EncodeDent(first), EncodeFail("read error"), EncodeDent(first))
	sc, err := NewConn(s).List("/d")
	require.NoError(t, err)

	require.True(t, sc.Next())
	assert.Equal(t, first, sc.Dent())
	assert.False(t, sc.Next())
	assert.False(t, sc.Next())

	msg, ok := protocol.IsServerError(sc.Err())
	require.True(t, ok)
	assert.Equal(t, "read error", msg)
	assert.Equal(t, len(EncodeDent(first)), s.in.Len(), "records after FAIL are not consumed")
}

func TestList_EmptyDirectory(t *testing.T) {
	got, err := NewConn(newScripted(TagDone[:])).ListAll("/d")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_InvalidName(t *testing.T) {
	bad := EncodeDent(Dent{Mode: 0o100644, Name: "ab"})
	bad[len(bad)-1] = 0xff
	_, err := NewConn(newScripted(bad)).ListAll("/d")
	var me *protocol.MalformedError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "dent name", me.Context)
}

func TestSend(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), (2*MaxChunk+100)/16+1)
	s := newScripted(TagOkay[:])
	c := NewConn(s)
	c.SetClock(func() time.Time { return time.Unix(1700000000, 0) })

	n, err := c.Send(bytes.NewReader(payload), "/data/local/tmp/f.bin", DefaultFileMode)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	wire := s.out.Bytes()
	req := request("SEND", "/data/local/tmp/f.bin,0644")
	require.True(t, bytes.HasPrefix(wire, req))
	wire = wire[len(req):]

	var got []byte
	chunks := 0
	for {
		tag, size := DecodeChunkHeader([ChunkHeaderLen]byte(wire[:ChunkHeaderLen]))
		wire = wire[ChunkHeaderLen:]
		if tag == TagDone {
			assert.Equal(t, uint32(1700000000), size, "DONE carries the send time")
			break
		}
		require.Equal(t, TagData, tag)
		require.LessOrEqual(t, size, uint32(MaxChunk))
		got = append(got, wire[:size]...)
		wire = wire[size:]
		chunks++
	}
	assert.Empty(t, wire)
	assert.Equal(t, payload, got)
	assert.Equal(t, 3, chunks)
}

func TestSend_EmptyFile(t *testing.T) {
	s := newScripted(TagOkay[:])
	c := NewConn(s)
	c.SetClock(func() time.Time { return time.Unix(42, 0) })

	n, err := c.Send(bytes.NewReader(nil), "f", 0o600)
	require.NoError(t, err)
	assert.Zero(t, n)
	want := append(request("SEND", "f,0600"), append([]byte("DONE"), le32(42)...)...)
	assert.Equal(t, want, s.out.Bytes())
}

func TestSend_Fail(t *testing.T) {
	s := newScripted(EncodeFail("couldn't create file: Read-only file system"))
	_, err := NewConn(s).Send(strings.NewReader("data"), "/system/x", DefaultFileMode)
	msg, ok := protocol.IsServerError(err)
	require.True(t, ok)
	assert.Equal(t, "couldn't create file: Read-only file system", msg)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestSend_LocalReadError(t *testing.T) {
	c := NewConn(newScripted())
	_, err := c.Send(failingReader{}, "/x", DefaultFileMode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.NotErrorIs(t, err, protocol.ErrTransport)
	assert.Equal(t, StateClosed, c.State())
}

func dataChunk(b []byte) []byte {
	hdr := EncodeChunkHeader(TagData, uint32(len(b)))
	return append(hdr[:], b...)
}

func doneChunk() []byte {
	hdr := EncodeChunkHeader(TagDone, 0)
	return hdr[:]
}

func TestRecv(t *testing.T) {
	s := newScripted(dataChunk([]byte("hello ")), dataChunk([]byte("world")), doneChunk())
	var out bytes.Buffer
	n, err := NewConn(s).Recv("/data/local/tmp/hello.txt", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", out.String())
	assert.Equal(t, request("RECV", "/data/local/tmp/hello.txt"), s.out.Bytes())
}

// A zero-length DATA chunk ends the transfer even when more data follows.
func TestRecv_ZeroLengthChunkEndsTransfer(t *testing.T) {
	s := newScripted(dataChunk([]byte("abc")), dataChunk(nil), dataChunk([]byte("ignored")), doneChunk())
	var out bytes.Buffer
	n, err := NewConn(s).Recv("/f", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", out.String())
	assert.NotZero(t, s.in.Len())
}

func TestRecv_Failures(t *testing.T) {
	t.Run("fail record keeps partial output", func(t *testing.T) {
		s := newScripted(dataChunk([]byte("part")), EncodeFail("No such file or directory"))
		var out bytes.Buffer
		n, err := NewConn(s).Recv("/f", &out)
		msg, ok := protocol.IsServerError(err)
		require.True(t, ok)
		assert.Equal(t, "No such file or directory", msg)
		assert.Equal(t, int64(4), n)
		assert.Equal(t, "part", out.String())
	})

	t.Run("unknown tag", func(t *testing.T) {
		hdr := EncodeChunkHeader(Tag{'D', 'E', 'N', 'T'}, 0)
		_, err := NewConn(newScripted(hdr[:])).Recv("/f", io.Discard)
		var me *protocol.MalformedError
		assert.True(t, errors.As(err, &me))
	})

	t.Run("oversized chunk", func(t *testing.T) {
		hdr := EncodeChunkHeader(TagData, MaxChunk+1)
		_, err := NewConn(newScripted(hdr[:])).Recv("/f", io.Discard)
		var me *protocol.MalformedError
		assert.True(t, errors.As(err, &me))
	})

	t.Run("truncated chunk", func(t *testing.T) {
		hdr := EncodeChunkHeader(TagData, 10)
		_, err := NewConn(newScripted(hdr[:], []byte("abc"))).Recv("/f", io.Discard)
		assert.ErrorIs(t, err, protocol.ErrTransport)
	})
}

func TestCommandTags(t *testing.T) {
	assert.Equal(t, "SEND", CmdSend.String())
	assert.Equal(t, "RECV", CmdRecv.String())
	assert.Equal(t, "LIST", CmdList.String())
	assert.Equal(t, "STAT", CmdStat.String())
}
