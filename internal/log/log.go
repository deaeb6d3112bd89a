package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// InitLogger sets the global log sink and level.
// filename="" logs to stderr, "/dev/null" discards, anything else is a rotated file.
func InitLogger(filename, level string) error {
	setOutput(filename)
	logrus.SetFormatter(&orderedFieldsFormatter{})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	return nil
}

func setOutput(filename string) {
	filename = strings.TrimSpace(filename)
	switch filename {
	case "/dev/null":
		logrus.SetOutput(io.Discard)
	case "":
		logrus.SetOutput(os.Stderr)
	default:
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    16, // megabytes
			MaxBackups: 8,
			MaxAge:     30, // days
		})
	}
}

func WithFields(fields Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}

func WithStage(stage string) *logrus.Entry {
	return logrus.WithField("stage", stage)
}

// orderedFieldsFormatter prints fields sorted by key.
type orderedFieldsFormatter struct{}

func (f *orderedFieldsFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	fmt.Fprintf(b, "%s %-5s msg=%q", e.Time.Format("2006-01-02 15:04:05"), e.Level.String(), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := e.Data[k].(type) {
		case string:
			fmt.Fprintf(b, " %s=%q", k, v)
		default:
			fmt.Fprintf(b, " %s=%v", k, v)
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
