package nakama

import (
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rs/zerolog"
)

// runtimeWriter forwards zerolog output to the Nakama logger so the service
// logs land in the server's own log stream.
type runtimeWriter struct {
	logger runtime.Logger
}

func (w runtimeWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w runtimeWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		w.logger.Debug("%s", msg)
	case zerolog.WarnLevel:
		w.logger.Warn("%s", msg)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		w.logger.Error("%s", msg)
	default:
		w.logger.Info("%s", msg)
	}
	return len(p), nil
}

// newZerolog wraps a runtime logger. level follows zerolog names; unknown or
// empty values mean info.
func newZerolog(logger runtime.Logger, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(runtimeWriter{logger: logger}).Level(lvl).With().Str("runtime", "nakama").Logger()
}
