package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func NewLogger(level string) zerolog.Logger {
	return newLogger(os.Stdout, level)
}

// NewLoggerWithFile tees JSON logs to stdout and a size-rotated file at path.
func NewLoggerWithFile(level, path string) zerolog.Logger {
	if path == "" {
		return NewLogger(level)
	}
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 30,
		MaxAge:     30, // days
		Compress:   true,
	}
	return newLogger(io.MultiWriter(os.Stdout, rotating), level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" { lvl = zerolog.InfoLevel }
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
