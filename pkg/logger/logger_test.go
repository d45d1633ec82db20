package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/logger"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Debug("invisible")
	log.Info("visible")

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Error("debug message leaked through an info-level logger")
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("info message missing from output:\n%s", out)
	}
}

func TestLogger_WithTarget(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.WithTarget("zlib").Info("Building")

	out := buf.String()
	if !strings.Contains(out, "[zlib]") {
		t.Errorf("expected target prefix in output:\n%s", out)
	}
	if strings.Contains(out, "target=") {
		t.Errorf("target must not be printed as a field too:\n%s", out)
	}
}

func TestLogger_FieldsSortedByKey(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("done",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", 2))

	out := buf.String()
	alpha := strings.Index(out, "alpha=")
	zeta := strings.Index(out, "zeta=")
	if alpha < 0 || zeta < 0 {
		t.Fatalf("fields missing from output:\n%s", out)
	}
	if alpha > zeta {
		t.Errorf("fields must be key-sorted for stable output:\n%s", out)
	}
}

func TestLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("bogus", &buf)

	log.Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Error("logger with bad level must fall back to info")
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("Built in 2s")
	if !strings.Contains(buf.String(), "Built in 2s") {
		t.Errorf("success message missing:\n%s", buf.String())
	}
}
