// Package log provides the process-wide logger, a logrus logger behind a
// small interface with a pattern formatter and pluggable appenders.
package log

import (
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/tzspd/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool

	// GetEntry exposes the underlying *logrus.Entry for libraries that
	// take a logrus logger directly.
	GetEntry() interface{}
}

const (
	defaultPattern = "%time [%level] %caller: %msg %field\n"
	defaultTime    = "2006-01-02 15:04:05.000"
)

var (
	current atomic.Value // *logrusAdapter

	mu     sync.Mutex
	output *MultiWriter
)

func init() {
	current.Store(newLogrusAdapter(&formatter{pattern: defaultPattern, time: defaultTime}, "info", NewMultiWriter().Add(os.Stdout)))
}

// GetLogger returns the process logger. It is usable before Init, logging
// at info level to stdout.
func GetLogger() Logger {
	return current.Load().(*logrusAdapter)
}

// Init replaces the process logger with one built from cfg. Appenders
// opened by a previous Init are closed.
func Init(cfg config.LogConfig) error {
	l, w, err := initByConfig(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := output
	output = w
	current.Store(l)
	mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close flushes and closes the appenders opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		return nil
	}
	err := output.Close()
	output = nil
	return err
}
