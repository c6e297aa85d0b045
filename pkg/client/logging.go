package client

import "github.com/sirupsen/logrus"

// logrusLogger adapts *logrus.Logger to the FieldLogger interface so the
// engine never imports logrus outside this one file.
type logrusLogger struct {
	*logrus.Logger
}

func (l logrusLogger) WithField(key string, value any) FieldLoggerEntry {
	return l.Logger.WithField(key, value)
}

func (l logrusLogger) WithFields(fields map[string]any) FieldLoggerEntry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

// NewLogrusLogger wraps logrus's standard logger as the default FieldLogger.
func NewLogrusLogger() FieldLogger {
	return logrusLogger{Logger: logrus.StandardLogger()}
}

func loggerOrDefault(l FieldLogger) FieldLogger {
	if l == nil {
		return NewLogrusLogger()
	}
	return l
}
