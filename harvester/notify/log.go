package notify

import (
	"github.com/rs/zerolog"
)

// Log writes notifications to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a notifier logging through logger.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

func (l *Log) Success(message string) {
	l.logger.Info().Str("level", string(LevelSuccess)).Msg(message)
}

func (l *Log) Error(message string) {
	l.logger.Warn().Str("level", string(LevelError)).Msg(message)
}

func (l *Log) Info(message string) {
	l.logger.Info().Str("level", string(LevelInfo)).Msg(message)
}
