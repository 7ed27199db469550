// Package fakeadb is an in-memory adb server for tests. It speaks the host
// protocol and the sync sub-protocol over a loopback TCP listener and keeps
// device files in a map.
package fakeadb

import (
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aguxez/adbx/internal/syncproto"
)

// DefaultVersion is the protocol version answered to host:version.
const DefaultVersion = 41

// Server is a fake adb server.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	version   int
	listing   string
	serials   []string
	snapshots []string
	shell     func(cmd string) string
	files     map[string]*file
	dirs      map[string]bool
	failures  map[string]string
	statDone  map[string]bool
	requests  []string
	conns     int
	active    map[net.Conn]struct{}
}

type file struct {
	data  []byte
	mode  uint32
	mtime uint32
}

// Start listens on 127.0.0.1 with an ephemeral port.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s := &Server{
		ln:       ln,
		version:  DefaultVersion,
		files:    make(map[string]*file),
		dirs:     map[string]bool{"/": true},
		failures: make(map[string]string),
		statDone: make(map[string]bool),
		active:   make(map[net.Conn]struct{}),
		shell:    func(string) string { return "" },
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns "127.0.0.1:<port>".
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Endpoint returns the address in endpoint form.
func (s *Server) Endpoint() string {
	return "tcp:" + s.Addr()
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.active {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// SetVersion sets the host:version answer.
func (s *Server) SetVersion(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// AddDevice registers a device line for host:devices-l. The serial is taken
// from the first token and becomes selectable with host:transport.
func (s *Server) AddDevice(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing += line + "\n"
	if fields := strings.Fields(line); len(fields) > 0 {
		s.serials = append(s.serials, fields[0])
	}
}

// AddSnapshot queues one host:track-devices update.
func (s *Server) AddSnapshot(listing string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, listing)
}

// HandleShell sets the function producing shell output.
func (s *Server) HandleShell(fn func(cmd string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shell = fn
}

// PutFile stores a device file, creating its parents.
func (s *Server) PutFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(path.Dir(p))
	s.files[p] = &file{data: append([]byte(nil), data...), mode: syncproto.ModeRegular | 0o644, mtime: 1700000000}
}

// Mkdir creates a device directory and its parents.
func (s *Server) Mkdir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(p)
}

// ReadFile returns a stored device file.
func (s *Server) ReadFile(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

// FileMode returns the mode a stored file was sent with.
func (s *Server) FileMode(p string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return 0, false
	}
	return f.mode, true
}

// FileMTime returns the modification time a stored file was sent with.
func (s *Server) FileMTime(p string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return 0, false
	}
	return f.mtime, true
}

// IsDir reports whether p is a device directory.
func (s *Server) IsDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[p]
}

// Files returns every stored file path, sorted.
func (s *Server) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FailPath makes every sync request on p answer FAIL with msg.
func (s *Server) FailPath(p, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[p] = msg
}

// StatDone makes STAT of p answer DONE instead of a record, as some
// servers do for missing paths.
func (s *Server) StatDone(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statDone[p] = true
}

// Requests returns every host service string and sync request seen, in
// order. Sync requests are recorded as "SEND <path>" and so on.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Connections returns how many connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) mkdirAllLocked(p string) {
	for p != "/" && p != "." && p != "" {
		s.dirs[p] = true
		p = path.Dir(p)
	}
}

func (s *Server) record(req string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.active[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.active, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
			_ = s.handle(conn)
		}()
	}
}

// handle serves one connection until a one-shot service completes or the
// client goes away.
func (s *Server) handle(conn net.Conn) error {
	selected := ""
	for {
		service, err := readRequest(conn)
		if err != nil {
			return err
		}
		s.record(service)

		switch {
		case service == "host:version":
			s.mu.Lock()
			v := s.version
			s.mu.Unlock()
			return writeOkayPayload(conn, fmt.Sprintf("%04x", v))

		case service == "host:devices" || service == "host:devices-l":
			s.mu.Lock()
			listing := s.listing
			s.mu.Unlock()
			return writeOkayPayload(conn, listing)

		case service == "host:track-devices":
			s.mu.Lock()
			snaps := append([]string(nil), s.snapshots...)
			s.mu.Unlock()
			if _, err := conn.Write([]byte("OKAY")); err != nil {
				return err
			}
			for _, snap := range snaps {
				if _, err := fmt.Fprintf(conn, "%04x%s", len(snap), snap); err != nil {
					return err
				}
			}
			return nil

		case service == "host:transport-any":
			s.mu.Lock()
			serials := append([]string(nil), s.serials...)
			s.mu.Unlock()
			switch len(serials) {
			case 0:
				return writeFail(conn, "no devices/emulators found")
			case 1:
				selected = serials[0]
			default:
				return writeFail(conn, "more than one device/emulator")
			}
			if _, err := conn.Write([]byte("OKAY")); err != nil {
				return err
			}

		case strings.HasPrefix(service, "host:transport:"):
			serial := strings.TrimPrefix(service, "host:transport:")
			if !s.hasSerial(serial) {
				return writeFail(conn, fmt.Sprintf("device '%s' not found", serial))
			}
			selected = serial
			if _, err := conn.Write([]byte("OKAY")); err != nil {
				return err
			}

		case strings.HasPrefix(service, "shell,raw:"):
			if selected == "" {
				return writeFail(conn, "no device selected")
			}
			s.mu.Lock()
			fn := s.shell
			s.mu.Unlock()
			out := fn(strings.TrimPrefix(service, "shell,raw:"))
			if _, err := conn.Write([]byte("OKAY")); err != nil {
				return err
			}
			_, err := io.WriteString(conn, out)
			return err

		case service == "sync:":
			if selected == "" {
				return writeFail(conn, "no device selected")
			}
			if _, err := conn.Write([]byte("OKAY")); err != nil {
				return err
			}
			return s.handleSync(conn)

		default:
			return writeFail(conn, "unknown host service")
		}
	}
}

func (s *Server) hasSerial(serial string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sr := range s.serials {
		if sr == serial {
			return true
		}
	}
	return false
}

func readRequest(r io.Reader) (string, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(hdr[:]), 16, 16)
	if err != nil {
		return "", fmt.Errorf("bad request length %q", hdr[:])
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeOkayPayload(w io.Writer, payload string) error {
	_, err := fmt.Fprintf(w, "OKAY%04x%s", len(payload), payload)
	return err
}

func writeFail(w io.Writer, msg string) error {
	_, err := fmt.Fprintf(w, "FAIL%04x%s", len(msg), msg)
	return err
}

// handleSync serves sync requests until the client closes the connection.
func (s *Server) handleSync(conn net.Conn) error {
	for {
		var hdr [syncproto.ChunkHeaderLen]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		tag, n := syncproto.DecodeChunkHeader(hdr)
		buf := make([]byte, n)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return err
		}
		p := string(buf)
		s.record(strings.TrimSpace(string(tag[:])) + " " + p)

		var err error
		switch tag {
		case syncproto.TagStat:
			err = s.syncStat(conn, p)
		case syncproto.TagList:
			err = s.syncList(conn, p)
		case syncproto.TagSend:
			err = s.syncSend(conn, p)
		case syncproto.TagRecv:
			err = s.syncRecv(conn, p)
		default:
			_, err = conn.Write(syncproto.EncodeFail("unknown sync request"))
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) failure(p string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.failures[p]
	return msg, ok
}

func (s *Server) syncStat(w io.Writer, p string) error {
	if msg, ok := s.failure(p); ok {
		_, err := w.Write(syncproto.EncodeFail(msg))
		return err
	}
	s.mu.Lock()
	if s.statDone[p] {
		s.mu.Unlock()
		done := syncproto.EncodeChunkHeader(syncproto.TagDone, 0)
		_, err := w.Write(done[:])
		return err
	}
	var st syncproto.StatInfo
	if f, ok := s.files[p]; ok {
		st = syncproto.StatInfo{Mode: f.mode, Size: uint32(len(f.data)), MTime: f.mtime}
	} else if s.dirs[p] {
		st = syncproto.StatInfo{Mode: syncproto.ModeDirectory | 0o755, Size: 4096, MTime: 1700000000}
	}
	s.mu.Unlock()
	_, err := w.Write(syncproto.EncodeStat(st))
	return err
}

func (s *Server) syncList(w io.Writer, p string) error {
	if msg, ok := s.failure(p); ok {
		_, err := w.Write(syncproto.EncodeFail(msg))
		return err
	}

	s.mu.Lock()
	var out []byte
	if s.dirs[p] {
		dirMode := syncproto.ModeDirectory | 0o755
		out = append(out, syncproto.EncodeDent(syncproto.Dent{Mode: dirMode, Size: 4096, Name: "."})...)
		out = append(out, syncproto.EncodeDent(syncproto.Dent{Mode: dirMode, Size: 4096, Name: ".."})...)

		var names []string
		children := make(map[string]syncproto.Dent)
		for fp, f := range s.files {
			if path.Dir(fp) == p {
				name := path.Base(fp)
				names = append(names, name)
				children[name] = syncproto.Dent{Mode: f.mode, Size: uint32(len(f.data)), MTime: f.mtime, Name: name}
			}
		}
		for dp := range s.dirs {
			if dp != p && path.Dir(dp) == p {
				name := path.Base(dp)
				names = append(names, name)
				children[name] = syncproto.Dent{Mode: dirMode, Size: 4096, MTime: 1700000000, Name: name}
			}
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, syncproto.EncodeDent(children[name])...)
		}
	}
	s.mu.Unlock()

	done := syncproto.EncodeChunkHeader(syncproto.TagDone, 0)
	out = append(out, done[:]...)
	_, err := w.Write(out)
	return err
}

func (s *Server) syncSend(rw io.ReadWriter, target string) error {
	idx := strings.LastIndexByte(target, ',')
	if idx < 0 {
		_, err := rw.Write(syncproto.EncodeFail("missing mode"))
		return err
	}
	p := target[:idx]
	perm, err := strconv.ParseUint(target[idx+1:], 0, 32)
	if err != nil {
		_, err := rw.Write(syncproto.EncodeFail("bad mode"))
		return err
	}

	var data []byte
	var mtime uint32
	for {
		var hdr [syncproto.ChunkHeaderLen]byte
		if _, err := io.ReadFull(rw, hdr[:]); err != nil {
			return err
		}
		tag, n := syncproto.DecodeChunkHeader(hdr)
		if tag == syncproto.TagDone {
			mtime = n
			break
		}
		if tag != syncproto.TagData || n > syncproto.MaxChunk {
			_, err := rw.Write(syncproto.EncodeFail("protocol error"))
			return err
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(rw, chunk); err != nil {
			return err
		}
		data = append(data, chunk...)
	}

	if msg, ok := s.failure(p); ok {
		_, err := rw.Write(syncproto.EncodeFail(msg))
		return err
	}

	s.mu.Lock()
	if _, isFile := s.files[path.Dir(p)]; isFile {
		s.mu.Unlock()
		_, err := rw.Write(syncproto.EncodeFail("secure_mkdirs() failed: Not a directory"))
		return err
	}
	if s.dirs[p] {
		s.mu.Unlock()
		_, err := rw.Write(syncproto.EncodeFail("Is a directory"))
		return err
	}
	s.mkdirAllLocked(path.Dir(p))
	s.files[p] = &file{data: data, mode: syncproto.ModeRegular | uint32(perm&0o777), mtime: mtime}
	s.mu.Unlock()

	_, err = rw.Write(syncproto.TagOkay[:])
	if err != nil {
		return err
	}
	var zero [4]byte
	_, err = rw.Write(zero[:])
	return err
}

func (s *Server) syncRecv(w io.Writer, p string) error {
	if msg, ok := s.failure(p); ok {
		_, err := w.Write(syncproto.EncodeFail(msg))
		return err
	}
	data, ok := s.ReadFile(p)
	if !ok {
		_, err := w.Write(syncproto.EncodeFail("No such file or directory"))
		return err
	}

	for len(data) > 0 {
		n := len(data)
		if n > syncproto.MaxChunk {
			n = syncproto.MaxChunk
		}
		hdr := syncproto.EncodeChunkHeader(syncproto.TagData, uint32(n))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	done := syncproto.EncodeChunkHeader(syncproto.TagDone, 0)
	_, err := w.Write(done[:])
	return err
}
