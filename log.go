package xrpl

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var log = zerolog.New(nil).Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.TimeOnly,
}).With().Timestamp().Logger()

// Log is the logger used by clients and connections created without one.
func Log() *zerolog.Logger {
	return &log
}

func init() {
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// SetLogLevel applies the named global level. An empty name falls back to
// the environment variable env, then to fallback.
func SetLogLevel(name string, env string, fallback zerolog.Level) (level zerolog.Level, err error) {
	if name == "" && env != "" {
		name = os.Getenv(env)
	}

	level = fallback
	if name != "" {
		if level, err = zerolog.ParseLevel(name); err != nil {
			err = errors.Wrapf(ErrValidation, "invalid log level '%s'", name)
			return
		}
	}

	zerolog.SetGlobalLevel(level)
	return
}
