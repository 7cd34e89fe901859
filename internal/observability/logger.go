package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/logging"
)

// InitLogger builds the process logger and installs it as the zerolog
// global. Level selection stays with the logging package's env profile.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
