package log

import (
	"errors"
	"strings"
)

var (
	// LogLevelMapping is a mapping for LogLevel enum
	LogLevelMapping = map[string]LogLevel{
		ERROR.String():   ERROR,
		WARNING.String(): WARNING,
		INFO.String():    INFO,
		DEBUG.String():   DEBUG,
		SILENT.String():  SILENT,
	}
)

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	SILENT
)

type LogLevel int

// ParseLevel resolves a level name, case-insensitively.
func ParseLevel(s string) (LogLevel, error) {
	level, exist := LogLevelMapping[strings.ToLower(strings.TrimSpace(s))]
	if !exist {
		return SILENT, errors.New("invalid log level: " + s)
	}
	return level, nil
}

func (l LogLevel) String() string {
	switch l {
	case INFO:
		return "info"
	case WARNING:
		return "warning"
	case ERROR:
		return "error"
	case DEBUG:
		return "debug"
	case SILENT:
		return "silent"
	default:
		return "unknown"
	}
}
