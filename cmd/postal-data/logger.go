package main

import (
	"github.com/sirupsen/logrus"
)

// newLogger builds the binary's logrus logger from config.
func newLogger(cfg loggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return log
}

// logrusAdapter bridges a logrus logger to the postal.Logger interface.
type logrusAdapter struct {
	log *logrus.Logger
}

func (a logrusAdapter) Debug(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (a logrusAdapter) Info(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Info(msg)
}

func (a logrusAdapter) Warn(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Warn(msg)
}

func (a logrusAdapter) Error(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Error(msg)
}

// fields converts alternating key-value pairs into logrus fields.
// Non-string keys and trailing unpaired values are labeled rather than
// dropped, so nothing a caller logs disappears silently.
func fields(keysAndValues []any) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "arg"
		}
		f[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}
