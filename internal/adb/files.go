package adb

import (
	"fmt"
	"io"

	"github.com/aguxez/adbx/internal/metrics"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
)

// Progress reports bytes moved for one remote file.
type Progress struct {
	Direction string
	Path      string
	Bytes     int64
}

// Stat returns the metadata of a remote path. protocol.ErrEndOfStream
// means the server ended the exchange without a record; callers treat that
// and a zero mode as "absent".
func (s *Session) Stat(p string) (syncproto.StatInfo, error) {
	if err := remotepath.CheckWire(p); err != nil {
		return syncproto.StatInfo{}, err
	}
	c, err := s.openSync()
	if err != nil {
		return syncproto.StatInfo{}, err
	}
	st, err := c.Stat(p)
	s.opts.recorder.RecordRequest(syncproto.CmdStat.String(), err)
	s.log.Debug().Str("path", p).Uint32("mode", st.Mode).Err(err).Msg("stat")
	return st, err
}

// List returns the entries of a remote directory, "." and ".." included.
// The path must pass the sandbox policy.
func (s *Session) List(p string) ([]syncproto.Dent, error) {
	if err := s.validator.Validate(p); err != nil {
		return nil, err
	}
	c, err := s.openSync()
	if err != nil {
		return nil, err
	}
	dents, err := c.ListAll(p)
	s.opts.recorder.RecordRequest(syncproto.CmdList.String(), err)
	s.log.Debug().Str("path", p).Int("entries", len(dents)).Err(err).Msg("list")
	return dents, err
}

// Push streams r to the remote path with the configured permission bits.
func (s *Session) Push(r io.Reader, remote string) (int64, error) {
	if err := s.validator.Validate(remote); err != nil {
		return 0, err
	}
	c, err := s.openSync()
	if err != nil {
		return 0, err
	}

	start := s.opts.now()
	src := r
	if s.opts.onProgress != nil {
		src = &progressReader{r: r, fn: s.opts.onProgress, p: Progress{Direction: metrics.DirectionPush, Path: remote}}
	}
	n, err := c.Send(src, remote, s.opts.fileMode)
	elapsed := s.opts.now().Sub(start)

	s.opts.recorder.RecordRequest(syncproto.CmdSend.String(), err)
	if err != nil {
		s.log.Debug().Str("path", remote).Int64("bytes", n).Err(err).Msg("push failed")
		return n, fmt.Errorf("failed to push %s: %w", remote, err)
	}
	s.opts.recorder.RecordTransfer(metrics.DirectionPush, n, elapsed)
	s.log.Debug().Str("path", remote).Int64("bytes", n).Dur("elapsed", elapsed).Msg("pushed")
	return n, nil
}

// Pull copies the remote file into w. Bytes written before a failure stay
// written.
func (s *Session) Pull(remote string, w io.Writer) (int64, error) {
	if err := remotepath.CheckWire(remote); err != nil {
		return 0, err
	}
	c, err := s.openSync()
	if err != nil {
		return 0, err
	}

	start := s.opts.now()
	dst := w
	if s.opts.onProgress != nil {
		dst = &progressWriter{w: w, fn: s.opts.onProgress, p: Progress{Direction: metrics.DirectionPull, Path: remote}}
	}
	n, err := c.Recv(remote, dst)
	elapsed := s.opts.now().Sub(start)

	s.opts.recorder.RecordRequest(syncproto.CmdRecv.String(), err)
	if err != nil {
		s.log.Debug().Str("path", remote).Int64("bytes", n).Err(err).Msg("pull failed")
		return n, fmt.Errorf("failed to pull %s: %w", remote, err)
	}
	s.opts.recorder.RecordTransfer(metrics.DirectionPull, n, elapsed)
	s.log.Debug().Str("path", remote).Int64("bytes", n).Dur("elapsed", elapsed).Msg("pulled")
	return n, nil
}

type progressReader struct {
	r  io.Reader
	fn func(Progress)
	p  Progress
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.p.Bytes += int64(n)
		pr.fn(pr.p)
	}
	return n, err
}

type progressWriter struct {
	w  io.Writer
	fn func(Progress)
	p  Progress
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	if n > 0 {
		pw.p.Bytes += int64(n)
		pw.fn(pw.p)
	}
	return n, err
}
