package remotepath

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// MaxLen is the longest path the sync protocol accepts.
const MaxLen = 1024

// DefaultSandboxRoot is the only device tree writable without root.
const DefaultSandboxRoot = "/data/local/tmp"

// ErrInvalidPath is matched by every PathError.
var ErrInvalidPath = errors.New("invalid remote path")

// PathError reports a path rejected before any I/O.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid remote path %q: %s", e.Path, e.Reason)
}

func (e *PathError) Unwrap() error { return ErrInvalidPath }

// CheckWire enforces the invariants every path crossing the sync boundary
// must satisfy: bounded length, non-empty, no NUL and no newline.
func CheckWire(p string) error {
	switch {
	case len(p) > MaxLen:
		return &PathError{Path: p, Reason: fmt.Sprintf("longer than %d bytes", MaxLen)}
	case p == "":
		return &PathError{Path: p, Reason: "path is empty"}
	case strings.ContainsRune(p, 0):
		return &PathError{Path: p, Reason: "contains NUL byte"}
	case strings.ContainsAny(p, "\r\n"):
		return &PathError{Path: p, Reason: "contains newline"}
	}
	return nil
}

// Validator checks remote paths against the wire invariants and a sandbox
// root that absolute paths must stay under.
type Validator struct {
	root string // cleaned absolute root, empty when unrestricted
}

// NewValidator creates a Validator for root. An empty root disables the
// sandbox check; any other root must be absolute.
func NewValidator(root string) (*Validator, error) {
	if root == "" {
		return &Validator{}, nil
	}
	if !path.IsAbs(root) {
		return nil, fmt.Errorf("sandbox root %q must be absolute", root)
	}
	return &Validator{root: path.Clean(root)}, nil
}

// Root returns the sandbox root, or "" when unrestricted.
func (v *Validator) Root() string {
	return v.root
}

// Validate returns a *PathError when p must not be sent to the device.
func (v *Validator) Validate(p string) error {
	if err := CheckWire(p); err != nil {
		return err
	}
	if strings.Contains(p, "//") {
		return &PathError{Path: p, Reason: "contains double slash"}
	}
	if p == "/" {
		return &PathError{Path: p, Reason: "path is root"}
	}

	if v.root != "" && path.IsAbs(p) {
		if !isUnderOrEqual(path.Clean(p), v.root) {
			return &PathError{Path: p, Reason: fmt.Sprintf("outside sandbox root %s", v.root)}
		}
	}
	return nil
}

// isUnderOrEqual returns true if testPath is under or equal to basePath:
//   - "/data/local/tmp" is under "/data/local/tmp" (equal)
//   - "/data/local/tmp/a.txt" is under "/data/local/tmp"
//   - "/data/local/tmpfoo" is NOT under "/data/local/tmp"
func isUnderOrEqual(testPath, basePath string) bool {
	if testPath == basePath {
		return true
	}

	baseWithSep := basePath
	if !strings.HasSuffix(baseWithSep, "/") {
		baseWithSep += "/"
	}

	return strings.HasPrefix(testPath, baseWithSep)
}

// Join joins remote path elements with forward slashes regardless of the
// host operating system.
func Join(elem ...string) string {
	return path.Join(elem...)
}

// Base returns the last element of a remote path.
func Base(p string) string {
	return path.Base(p)
}
