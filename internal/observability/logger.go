package observability

import (
	"github.com/danmuck/streamcore/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger applies the runtime log profile and tags the global logger with app.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ConnLogger derives a per-connection logger from base.
func ConnLogger(base zerolog.Logger, connID, remote string) zerolog.Logger {
	ctx := base.With().Str("conn", connID)
	if remote != "" {
		ctx = ctx.Str("remote", remote)
	}
	return ctx.Logger()
}
