// Package logging configures the process-wide zerolog logger with file
// rotation.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a JSON logger writing to stdout and, when dir is non-empty,
// to a size-rotated file under dir.
func New(level, dir string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{os.Stdout}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   filepath.Join(dir, "engine.log"),
				MaxSize:    50, // megabytes
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			})
		}
	}

	return zerolog.New(io.MultiWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
