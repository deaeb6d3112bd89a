package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestOrderedFieldsFormatter(t *testing.T) {
	a := assert.New(t)

	e := logrus.NewEntry(logrus.New())
	e.Time = time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	e.Level = logrus.InfoLevel
	e.Message = "split done"
	e.Data = logrus.Fields{"train": 700, "stage": "split", "bench": "a"}
	e.Buffer = &bytes.Buffer{}

	out, err := (&orderedFieldsFormatter{}).Format(e)
	a.NoError(err)
	a.Equal("2026-02-15 10:00:00 info  msg=\"split done\" bench=\"a\" stage=\"split\" train=700\n", string(out))
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	a := assert.New(t)
	a.Error(InitLogger("/dev/null", "loud"))
	a.NoError(InitLogger("/dev/null", "debug"))
	a.Equal(logrus.DebugLevel, logrus.GetLevel())
	a.NoError(InitLogger("/dev/null", ""))
	a.Equal(logrus.InfoLevel, logrus.GetLevel())
}
