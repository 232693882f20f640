package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logger           = newLogger(os.Stdout, "msg", logrus.InfoLevel)
	instrumentLogger = newLogger(os.Stdout, "instrument_msg", logrus.WarnLevel)
)

// newLogger builds a text logger with full timestamps. The message key is
// renamed for the instrument logger so its lines can be grepped apart.
func newLogger(out io.Writer, msgKey string, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: msgKey,
		},
	})
	l.SetLevel(level)
	return l
}

// GetLogger returns the process-wide bench logger.
func GetLogger() *logrus.Logger {
	return logger
}

// GetInstrumentLogger returns the logger used for raw command traffic.
func GetInstrumentLogger() *logrus.Logger {
	return instrumentLogger
}

func SetLogLevel(level string) error {
	return setLevel(logger, level)
}

func SetInstrumentLogLevel(level string) error {
	return setLevel(instrumentLogger, level)
}

func setLevel(l *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(parsed)
	return nil
}
