// Package dirsync drives multi-file push and pull over a sync-capable
// client. Every remote operation runs on its own connection; the client
// takes care of reconnecting between them.
//
// Both directions fail fast on the first error and never roll back work
// already done.
package dirsync

import (
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/aguxez/adbx/internal/protocol"
	"github.com/aguxez/adbx/internal/syncproto"
)

var (
	// ErrNotDirectory is returned when a local directory would be pushed
	// onto a remote path that exists and is not a directory.
	ErrNotDirectory = errors.New("cannot push a directory onto a non-directory target")

	// ErrRemoteNotFound is returned when the pull source does not exist.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrLocalNotDirectory is returned when a remote directory would be
	// pulled onto an existing local file.
	ErrLocalNotDirectory = errors.New("cannot pull a directory onto a local file")
)

// Client is the remote side of a transfer. *adb.Session satisfies it.
type Client interface {
	Stat(path string) (syncproto.StatInfo, error)
	List(path string) ([]syncproto.Dent, error)
	Push(r io.Reader, remote string) (int64, error)
	Pull(remote string, w io.Writer) (int64, error)
}

// DirMaker is implemented by clients that can create remote directories.
type DirMaker interface {
	Mkdir(path string) error
}

// Options tunes a transfer.
type Options struct {
	// Atomic pulls write to a hidden temporary file and rename it into
	// place once the transfer succeeded.
	Atomic bool
	// Checksum records a BLAKE3 digest of every file moved.
	Checksum bool
	// MakeDirs creates every pushed directory explicitly, including empty
	// ones, when the client is a DirMaker.
	MakeDirs bool

	Logger zerolog.Logger
	Now    func() time.Time
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// statRemote returns the remote metadata, folding the DONE answer into a
// zero StatInfo so both "absent" forms look the same.
func statRemote(c Client, p string) (syncproto.StatInfo, error) {
	st, err := c.Stat(p)
	if errors.Is(err, protocol.ErrEndOfStream) {
		return syncproto.StatInfo{}, nil
	}
	return st, err
}
