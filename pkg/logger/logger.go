// Package logger builds the zerolog logger shared by the server and engine.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer io.Writer
	path   string
	level  string
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

// FromPath appends log lines to the file at path. It wins over FromBuffer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel sets the minimum level by name ("debug", "info", ...). An empty
// or unknown name leaves the default, info.
func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stdout
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}

	level := zerolog.InfoLevel
	if build.level != "" {
		if parsed, err := zerolog.ParseLevel(build.level); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}
	logData.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logData, nil
}

// Close releases the log file, if any.
func (l *LogData) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}
