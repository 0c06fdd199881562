package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logger type used throughout the application.
type Logger = *logrus.Logger

// NewLogger creates a logger configured for terminal output. Debug mode
// enables verbose diagnostics from the stream and gateway layers.
func NewLogger(out io.Writer, debug bool) Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
