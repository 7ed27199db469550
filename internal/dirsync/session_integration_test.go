package dirsync

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aguxez/adbx/internal/adb"
	"github.com/aguxez/adbx/internal/localtree"
	"github.com/aguxez/adbx/internal/syncproto"
	"github.com/aguxez/adbx/internal/testutil/fakeadb"
	"github.com/aguxez/adbx/internal/testutil/testlog"
	"github.com/aguxez/adbx/internal/transport"
)

func newSession(t *testing.T) (*adb.Session, *fakeadb.Server) {
	t.Helper()
	srv, err := fakeadb.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	srv.AddDevice("emulator-5554\tdevice")

	ep, err := transport.ParseEndpoint(srv.Endpoint())
	require.NoError(t, err)
	s, err := adb.New(context.Background(), ep, adb.WithLogger(testlog.Start(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, srv
}

func TestSessionRoundTrip(t *testing.T) {
	s, srv := newSession(t)

	big := make([]byte, syncproto.MaxChunk*3+5)
	_, err := rand.Read(big)
	require.NoError(t, err)

	src := t.TempDir()
	writeLocal(t, src, map[string]string{
		"a/b.txt":   "hello",
		"a/c/d.txt": "nested",
		"empty.txt": "",
	})
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "big.bin"), big, 0644))

	pushed, err := PushTree(s, src, "/data/local/tmp/tree", Options{Checksum: true, Logger: testlog.Start(t)})
	require.NoError(t, err)
	assert.Len(t, pushed.Files, 4)
	assert.Equal(t, []string{
		"/data/local/tmp/tree/a/b.txt",
		"/data/local/tmp/tree/a/big.bin",
		"/data/local/tmp/tree/a/c/d.txt",
		"/data/local/tmp/tree/empty.txt",
	}, srv.Files())

	dest := filepath.Join(t.TempDir(), "copy")
	pulled, err := PullTree(s, "/data/local/tmp/tree", dest, Options{Atomic: true, Checksum: true})
	require.NoError(t, err)
	assert.Equal(t, pushed.TotalBytes(), pulled.TotalBytes())

	before, err := localtree.Walk(src)
	require.NoError(t, err)
	after, err := localtree.Walk(dest)
	require.NoError(t, err)
	assert.Empty(t, localtree.Diff(before, after))

	got, err := os.ReadFile(filepath.Join(dest, "a", "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, big, got)

	digests := make(map[string]string)
	for _, f := range pushed.Files {
		digests[f.Remote] = f.Digest
	}
	for _, f := range pulled.Files {
		assert.Equal(t, digests[f.Remote], f.Digest, f.Remote)
	}
}

func TestSessionPushOntoRemoteFile(t *testing.T) {
	s, srv := newSession(t)
	srv.PutFile("/data/local/tmp/occupied", []byte("x"))

	src := t.TempDir()
	writeLocal(t, src, map[string]string{"f.txt": "f"})

	_, err := PushTree(s, src, "/data/local/tmp/occupied", Options{})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestSessionPullMissing(t *testing.T) {
	s, _ := newSession(t)
	_, err := Pull(s, "/data/local/tmp/missing", t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrRemoteNotFound)
}

func TestSessionVerify(t *testing.T) {
	s, srv := newSession(t)

	src := t.TempDir()
	writeLocal(t, src, map[string]string{
		"a/b.txt": "hello",
		"c.txt":   "see",
	})
	require.NoError(t, os.Symlink("c.txt", filepath.Join(src, "link")))

	report, err := PushTree(s, src, "/data/local/tmp/v", Options{})
	require.NoError(t, err)

	changes, err := VerifyReport(s, report, Options{})
	require.NoError(t, err)
	assert.Empty(t, changes, "symlinks and directories are not compared")

	srv.PutFile("/data/local/tmp/v/a/b.txt", []byte("hello, world"))
	srv.PutFile("/data/local/tmp/v/extra.txt", []byte("x"))

	changes, err = Verify(s, src, "/data/local/tmp/v", Options{})
	require.NoError(t, err)
	assert.Equal(t, []localtree.Change{
		{Rel: "a/b.txt", Type: "modified", OldSize: 5, NewSize: 12},
		{Rel: "extra.txt", Type: "created", NewSize: 1},
	}, changes)
}

func TestSessionVerify_SingleFile(t *testing.T) {
	s, srv := newSession(t)
	srv.Mkdir("/data/local/tmp/inbox")

	local := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(local, []byte("note"), 0644))

	report, err := Push(s, local, "/data/local/tmp/inbox", Options{})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "/data/local/tmp/inbox/note.txt", report.Files[0].Remote)

	changes, err := VerifyReport(s, report, Options{})
	require.NoError(t, err)
	assert.Empty(t, changes)

	changes, err = Verify(s, local, "/data/local/tmp/inbox/missing.txt", Options{})
	require.NoError(t, err)
	assert.Equal(t, []localtree.Change{{Rel: "note.txt", Type: "deleted", OldSize: 4}}, changes)
}

func TestSessionVerify_EmptyTreeNeverPushed(t *testing.T) {
	s, _ := newSession(t)

	changes, err := Verify(s, t.TempDir(), "/data/local/tmp/nothing-here", Options{})
	require.NoError(t, err)
	assert.Empty(t, changes)
}
