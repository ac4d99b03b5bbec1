package observability

import (
	"github.com/danmuck/systolink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger applies the runtime logging profile and tags the global logger
// with app. Verbose lowers both the global and logger level to debug.
func InitLogger(app string, verbose bool) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger = logger.Level(zerolog.DebugLevel)
	}
	log.Logger = logger
	return logger
}
