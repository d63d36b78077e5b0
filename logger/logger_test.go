package logger_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.jpl.nasa.gov/bdube/migcap/logger"
)

func TestLevelParsing(t *testing.T) {
	if os.Getenv("DEBUG") == "1" {
		t.Skip("DEBUG=1 overrides the configured level")
	}
	if l := logger.New(&bytes.Buffer{}, "warn"); l.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn, got %v", l.GetLevel())
	}
	if l := logger.New(&bytes.Buffer{}, "nonsense"); l.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected unparseable level to fall back to info, got %v", l.GetLevel())
	}
}

func TestFieldsAreWritten(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.New(buf, "info")
	l.WithField("feature", "Gain").Info("read")
	if !strings.Contains(buf.String(), "feature=Gain") {
		t.Errorf("expected the field in the output, got %q", buf.String())
	}
}
