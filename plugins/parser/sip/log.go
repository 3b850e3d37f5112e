package sip

import (
	gosiplog "github.com/ghettovoice/gosip/log"

	"firestige.xyz/tzspd/internal/log"
)

// LoggerAdapter adapts the process logger to the gosip Logger interface.
type LoggerAdapter struct {
	logger log.Logger
	prefix string
	fields gosiplog.Fields
}

func newLoggerAdapter(logger log.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger, fields: gosiplog.Fields{}}
}

func (la *LoggerAdapter) Fields() gosiplog.Fields {
	return la.fields
}

func (la *LoggerAdapter) WithFields(fields map[string]interface{}) gosiplog.Logger {
	merged := make(gosiplog.Fields, len(la.fields)+len(fields))
	for k, v := range la.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &LoggerAdapter{logger: la.logger.WithFields(fields), prefix: la.prefix, fields: merged}
}

func (la *LoggerAdapter) Prefix() string {
	return la.prefix
}

func (la *LoggerAdapter) WithPrefix(prefix string) gosiplog.Logger {
	return &LoggerAdapter{logger: la.logger.WithField("prefix", prefix), prefix: prefix, fields: la.fields}
}

func (la *LoggerAdapter) Print(args ...interface{})                 { la.logger.Print(args...) }
func (la *LoggerAdapter) Printf(format string, args ...interface{}) { la.logger.Printf(format, args...) }

func (la *LoggerAdapter) Trace(args ...interface{})                 { la.logger.Trace(args...) }
func (la *LoggerAdapter) Tracef(format string, args ...interface{}) { la.logger.Tracef(format, args...) }

func (la *LoggerAdapter) Debug(args ...interface{})                 { la.logger.Debug(args...) }
func (la *LoggerAdapter) Debugf(format string, args ...interface{}) { la.logger.Debugf(format, args...) }

func (la *LoggerAdapter) Info(args ...interface{})                 { la.logger.Info(args...) }
func (la *LoggerAdapter) Infof(format string, args ...interface{}) { la.logger.Infof(format, args...) }

func (la *LoggerAdapter) Warn(args ...interface{})                 { la.logger.Warn(args...) }
func (la *LoggerAdapter) Warnf(format string, args ...interface{}) { la.logger.Warnf(format, args...) }

func (la *LoggerAdapter) Error(args ...interface{})                 { la.logger.Error(args...) }
func (la *LoggerAdapter) Errorf(format string, args ...interface{}) { la.logger.Errorf(format, args...) }

func (la *LoggerAdapter) Fatal(args ...interface{})                 { la.logger.Fatal(args...) }
func (la *LoggerAdapter) Fatalf(format string, args ...interface{}) { la.logger.Fatalf(format, args...) }

func (la *LoggerAdapter) Panic(args ...interface{})                 { la.logger.Panic(args...) }
func (la *LoggerAdapter) Panicf(format string, args ...interface{}) { la.logger.Panicf(format, args...) }

// SetLevel is a no-op; the level belongs to the process logger.
func (la *LoggerAdapter) SetLevel(level uint32) {}
