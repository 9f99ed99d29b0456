package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var (
	level = new(slog.LevelVar)

	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(
			w, &slog.HandlerOptions{
				Level: level,
			},
		),
	)
}

// SetOutput redirects log output, stdout is reserved for command results.
func SetOutput(w io.Writer) {
	logger = newLogger(w)
}

func SetDebug(enable bool) {
	if enable {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Infof(msg string, args ...any) {
	logger.Info(fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...any) {
	logger.Warn(fmt.Sprintf(msg, args...))
}

func Error(msg string, err error) {
	logger.Error(msg, "error", err)
}

func Errorf(msg string, args ...any) {
	logger.Error(fmt.Sprintf(msg, args...))
}

func Fatalf(format string, v ...any) {
	logger.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Debugf(msg string, args ...any) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug(fmt.Sprintf(msg, args...))
}
