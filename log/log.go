package log

import (
	"bytes"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

var level = WARNING

// stdout is reserved for the counter report, so everything goes to stderr.
var logger = &log.Logger{
	Out:       os.Stderr,
	Formatter: &Formatter{},
	Hooks:     make(log.LevelHooks),
	Level:     log.DebugLevel,
}

type Formatter struct {
}

func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(entry.Time.Format("2006/01/02 15:04:05"))
	b.WriteString(fmt.Sprintf(" |%.4s| ", entry.Level))

	b.WriteString(entry.Message)
	for k, v := range entry.Data {
		b.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func Infoln(format string, v ...any) {
	print(INFO, format, v...)
}

func Warnln(format string, v ...any) {
	print(WARNING, format, v...)
}

func Debugln(format string, v ...any) {
	print(DEBUG, format, v...)
}

func SetLevel(newLevel LogLevel) {
	level = newLevel
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func print(l LogLevel, format string, v ...any) {
	if l < level {
		return
	}

	switch l {
	case INFO:
		logger.Infof(format, v...)
	case WARNING:
		logger.Warnf(format, v...)
	case ERROR:
		logger.Errorf(format, v...)
	case DEBUG:
		logger.Debugf(format, v...)
	}
}
