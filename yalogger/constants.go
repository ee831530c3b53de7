package yalogger

import "errors"

// Level mirrors logrus.Level ordering so a Config can be converted directly
// with logrus.Level(level) without a lookup table.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

type BaseLoggerType uint8

const (
	Logrus BaseLoggerType = iota
)

const (
	KeyRequestID       = "request_id"
	KeySystemRequestID = "system_request_id"
	KeyUserID          = "user_id"
)

var ErrInvalidLogLevel = errors.New("invalid log level")
