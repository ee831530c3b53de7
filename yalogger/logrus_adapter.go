package yalogger

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// logrusAdapter implements Logger over a logrus.Entry. Every With* method
// returns a new adapter wrapping the derived entry rather than mutating the
// receiver, so loggers can be freely shared and forked across goroutines.
type logrusAdapter struct {
	entry *logrus.Entry
}

type baseLogrus struct {
	logger *logrus.Logger
}

// NewBaseLogger builds a BaseLogger from Config. A nil Config falls back to
// a permissive debug-level logger, matching the teacher's development
// default.
func NewBaseLogger(config *Config) BaseLogger {
	if config == nil {
		config = &Config{
			BaseLoggerType:   Logrus,
			Level:            DebugLevel,
			FullTimestamp:    false,
			TimestampFormat:  "2006-01-02 15:04:05",
			DisableTimestamp: true,
		}
	}

	switch config.BaseLoggerType {
	case Logrus:
		base := logrus.New()
		base.SetLevel(logrus.Level(config.Level))
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    config.FullTimestamp,
			TimestampFormat:  config.TimestampFormat,
			DisableTimestamp: config.DisableTimestamp,
		})

		return &baseLogrus{logger: base}
	default:
		panic("unsupported logger type, you are a teapot!!!")
	}
}

func (b *baseLogrus) NewLogger() Logger {
	return &logrusAdapter{entry: logrus.NewEntry(b.logger)}
}

func (l *logrusAdapter) Info(msg string)                       { l.entry.Info(msg) }
func (l *logrusAdapter) Infof(format string, args ...any)      { l.entry.Infof(format, args...) }
func (l *logrusAdapter) Error(msg string)                       { l.entry.Error(msg) }
func (l *logrusAdapter) Errorf(format string, args ...any)      { l.entry.Errorf(format, args...) }
func (l *logrusAdapter) Warn(msg string)                        { l.entry.Warn(msg) }
func (l *logrusAdapter) Warnf(format string, args ...any)       { l.entry.Warnf(format, args...) }
func (l *logrusAdapter) Debug(msg string)                       { l.entry.Debug(msg) }
func (l *logrusAdapter) Debugf(format string, args ...any)      { l.entry.Debugf(format, args...) }
func (l *logrusAdapter) Fatal(msg string)                       { l.entry.Fatal(msg) }
func (l *logrusAdapter) Fatalf(format string, args ...any)      { l.entry.Fatalf(format, args...) }
func (l *logrusAdapter) Trace(msg string)                       { l.entry.Trace(msg) }
func (l *logrusAdapter) Tracef(format string, args ...any)      { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) WithField(key string, value any) Logger {
	return &logrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]any) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *logrusAdapter) WithRequestStringID(id string) Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeyRequestID, id)}
}

func (l *logrusAdapter) WithRequestUUID(id uuid.UUID) Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeyRequestID, id)}
}

func (l *logrusAdapter) WithRequestID(id uint64) Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeyRequestID, id)}
}

func (l *logrusAdapter) WithRandomRequestID() Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeyRequestID, rand.Uint64())}
}

func (l *logrusAdapter) WithSystemRequestID(id uint8) Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeySystemRequestID, id)}
}

func (l *logrusAdapter) WithUserID(userID uint64) Logger {
	return &logrusAdapter{entry: l.entry.WithField(KeyUserID, userID)}
}

func (l *logrusAdapter) GetFields() map[string]any {
	return l.entry.Data
}

func (l *logrusAdapter) GetField(key string) any {
	val, ok := l.entry.Data[key]
	if !ok {
		return nil
	}

	return val
}

func (l *logrusAdapter) DeleteField(key string) {
	delete(l.entry.Data, key)
}
