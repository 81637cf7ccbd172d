package rtc

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerFactory routes pion's internal logging into zerolog. Every scope
// becomes a sub-logger tagged with module "pion" and the scope name.
type LoggerFactory struct {
	Level zerolog.Level
}

func NewLoggerFactory(level zerolog.Level) *LoggerFactory {
	return &LoggerFactory{Level: level}
}

func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{
		zl: log.With().Str("module", "pion").Str("scope", scope).Logger().Level(f.Level),
	}
}

type leveledLogger struct {
	zl zerolog.Logger
}

func (l *leveledLogger) Trace(msg string) { l.zl.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(format string, args ...any) {
	l.zl.Trace().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Info(msg string) { l.zl.Info().Msg(msg) }
func (l *leveledLogger) Infof(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Warn(msg string) { l.zl.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Error(msg string) { l.zl.Error().Msg(msg) }
func (l *leveledLogger) Errorf(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}
