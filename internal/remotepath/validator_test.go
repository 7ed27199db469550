package remotepath

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		wantRoot string
		wantErr  bool
	}{
		{name: "default root", root: DefaultSandboxRoot, wantRoot: "/data/local/tmp"},
		{name: "trailing slash is cleaned", root: "/sdcard/", wantRoot: "/sdcard"},
		{name: "empty disables sandbox", root: "", wantRoot: ""},
		{name: "relative root rejected", root: "data/local/tmp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValidator(tt.root)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, v.Root())
		})
	}
}

func TestValidate(t *testing.T) {
	v, err := NewValidator(DefaultSandboxRoot)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
		reason  string
	}{
		{name: "too long", path: "/data/local/tmp/" + strings.Repeat("a", MaxLen), wantErr: true, reason: "longer than"},
		{name: "exactly max length", path: "/data/local/tmp/" + strings.Repeat("a", MaxLen-len("/data/local/tmp/"))},
		{name: "empty", path: "", wantErr: true, reason: "empty"},
		{name: "embedded NUL", path: "/data/local/tmp/a\x00b", wantErr: true, reason: "NUL"},
		{name: "embedded newline", path: "/data/local/tmp/a\nb", wantErr: true, reason: "newline"},
		{name: "double slash", path: "/data/local/tmp//a", wantErr: true, reason: "double slash"},
		{name: "root", path: "/", wantErr: true, reason: "root"},
		{name: "outside sandbox", path: "/sdcard/Download", wantErr: true, reason: "outside sandbox"},
		{name: "sibling with shared prefix", path: "/data/local/tmpfoo", wantErr: true, reason: "outside sandbox"},
		{name: "dot-dot escape", path: "/data/local/tmp/../../../etc/passwd", wantErr: true, reason: "outside sandbox"},
		{name: "sandbox root itself", path: "/data/local/tmp"},
		{name: "inside sandbox", path: "/data/local/tmp/build/app.apk"},
		{name: "relative path", path: "notes.txt"},
		{name: "trailing slash", path: "/data/local/tmp/dir/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestValidate_UnrestrictedRoot(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)

	assert.NoError(t, v.Validate("/sdcard/Download"))
	assert.NoError(t, v.Validate("/system/build.prop"))
	assert.Error(t, v.Validate("/"))
	assert.Error(t, v.Validate("/sdcard//x"))
}

func TestCheckWire(t *testing.T) {
	assert.NoError(t, CheckWire("/sdcard//odd but allowed on the wire"))
	assert.Error(t, CheckWire(""))
	assert.Error(t, CheckWire("a\rb"))
	assert.Error(t, CheckWire(strings.Repeat("x", MaxLen+1)))
	assert.NoError(t, CheckWire(strings.Repeat("x", MaxLen)))
}

func TestIsUnderOrEqual(t *testing.T) {
	assert.True(t, isUnderOrEqual("/data/local/tmp", "/data/local/tmp"))
	assert.True(t, isUnderOrEqual("/data/local/tmp/x", "/data/local/tmp"))
	assert.False(t, isUnderOrEqual("/data/local/tmpx", "/data/local/tmp"))
	assert.True(t, isUnderOrEqual("/anything", "/"))
}

func TestJoinAndBase(t *testing.T) {
	assert.Equal(t, "/data/local/tmp/a/b.txt", Join("/data/local/tmp", "a", "b.txt"))
	assert.Equal(t, "b.txt", Base("/data/local/tmp/a/b.txt"))
}
