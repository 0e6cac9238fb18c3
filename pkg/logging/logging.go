// Package logging configures the logrus loggers used across the application
package logging

import (
	"io"
	"strings"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when no level is configured
const DefaultLevel = "info"

// ParseLevel converts a level name to a logrus level, falling back to info
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// New creates a logger writing to out at the given level
func New(level string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLevel(level))

	formatter := new(prefixed.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05.000"
	formatter.FullTimestamp = true
	formatter.PrefixPadding = 10
	logger.SetFormatter(formatter)

	return logrus.NewEntry(logger)
}

// Discard returns a logger that drops everything, for tests and library defaults
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// For returns a child logger tagged with a component prefix
func For(parent *logrus.Entry, component string) *logrus.Entry {
	if parent == nil {
		parent = Discard()
	}
	return parent.WithField("prefix", component)
}
