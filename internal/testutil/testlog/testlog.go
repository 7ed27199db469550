package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/aguxez/adbx/internal/logging"
)

// Start returns a debug logger that writes through t.Log.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	cfg := logging.DefaultConfig(logging.ProfileTest)
	cfg.Output = zerolog.NewTestWriter(t)
	log := logging.New(cfg)
	log.Info().Str("test", t.Name()).Msg("start")
	return log
}
