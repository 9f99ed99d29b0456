package logging

import "github.com/pressly/goose/v3"

type GooseLogger struct {
}

var _ goose.Logger = (*GooseLogger)(nil)

func (p GooseLogger) Fatalf(format string, v ...interface{}) {
	Fatalf(format, v...)
}

// Printf demotes goose's migration chatter to debug.
func (p GooseLogger) Printf(format string, v ...interface{}) {
	Debugf(format, v...)
}
