package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "unix:/var/run/adb.sock", cfg.Server.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Server.DialTimeout)
	assert.Empty(t, cfg.Device.Serial)
	assert.Equal(t, FormatText, cfg.Output.Format)
	assert.Equal(t, "/data/local/tmp", cfg.Sync.SandboxRoot)
	assert.True(t, cfg.Sync.AtomicPull)
	assert.False(t, cfg.Sync.Checksum)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)

	mode, err := cfg.Sync.Mode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromHomeConfig(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".adbx")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
server:
  endpoint: tcp:127.0.0.1:5037
  dial_timeout: 250ms
device:
  serial: emulator-5554
sync:
  sandbox_root: ""
  file_mode: "0755"
  checksum: true
journal:
  dir: ~/transfers
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tcp:127.0.0.1:5037", cfg.Server.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.DialTimeout)
	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Empty(t, cfg.Sync.SandboxRoot)
	assert.True(t, cfg.Sync.Checksum)
	assert.True(t, cfg.Sync.AtomicPull)
	assert.Equal(t, filepath.Join(home, "transfers"), cfg.Journal.Dir)

	mode, err := cfg.Sync.Mode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), mode)
}

func TestLoadExplicitPath(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: yaml\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, cfg.Output.Format)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("ADBX_DEVICE_SERIAL", "731d5853")
	t.Setenv("ADBX_SERVER_ENDPOINT", "localhost:5038")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "731d5853", cfg.Device.Serial)
	assert.Equal(t, "localhost:5038", cfg.Server.Endpoint)
}

func TestSyncMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    os.FileMode
		wantErr bool
	}{
		{raw: "0644", want: 0o644},
		{raw: "644", want: 0o644},
		{raw: "0o600", want: 0o600},
		{raw: "0888", wantErr: true},
		{raw: "01777", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			mode, err := Sync{FileMode: tt.raw}.Mode()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: Server{Endpoint: "unix:/tmp/adb.sock"},
			Output: Output{Format: FormatText},
			Sync:   Sync{FileMode: "0644", SandboxRoot: "/data/local/tmp"},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.Output.Format = "xml"
	assert.ErrorContains(t, c.Validate(), "output.format")

	c = valid()
	c.Server.Endpoint = "tcp:host:0"
	assert.ErrorContains(t, c.Validate(), "server.endpoint")

	c = valid()
	c.Sync.SandboxRoot = "relative"
	assert.ErrorContains(t, c.Validate(), "sandbox_root")
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("adbx", pflag.ContinueOnError)
	fs.String("socket", "", "")
	fs.String("serial", "", "")
	fs.String("output", "", "")
	fs.Bool("json", false, "")
	fs.Bool("debug", false, "")
	fs.String("metrics-file", "", "")
	require.NoError(t, fs.Parse([]string{"--socket", "tcp:10.0.0.2", "--json", "--debug", "--metrics-file", "/tmp/adbx.prom"}))

	cfg := &Config{
		Server: Server{Endpoint: "unix:/var/run/adb.sock"},
		Device: Device{Serial: "from-config"},
		Output: Output{Format: FormatYAML},
		Log:    Log{Level: "info"},
	}
	require.NoError(t, cfg.ApplyFlags(fs))

	assert.Equal(t, "tcp:10.0.0.2", cfg.Server.Endpoint)
	assert.Equal(t, "from-config", cfg.Device.Serial, "unset flag keeps config value")
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/adbx.prom", cfg.Metrics.Textfile)
}
