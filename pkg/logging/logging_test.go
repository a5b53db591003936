package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)
	if logger.level != LevelInfo {
		t.Errorf("expected level %s, got %s", LevelInfo, logger.level)
	}
	if logger.format != FormatText {
		t.Errorf("expected text format by default, got %s", logger.format)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"Warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.Debug("test message", map[string]any{"key": "value"})

	output := buf.String()
	if !strings.Contains(output, `"level":"debug"`) {
		t.Errorf("expected debug level in output, got: %s", output)
	}
	if !strings.Contains(output, `"message":"test message"`) {
		t.Errorf("expected message in output, got: %s", output)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	logger.Warn("something odd", map[string]any{"item_id": 42})

	output := buf.String()
	if !strings.Contains(output, "WARN") {
		t.Errorf("expected WARN in output, got: %s", output)
	}
	if !strings.Contains(output, "item_id=42") {
		t.Errorf("expected field in output, got: %s", output)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn)
	logger.SetOutput(&buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() > 0 {
		t.Errorf("expected no output below warn, got: %s", buf.String())
	}

	logger.Warn("shown")
	logger.Error("shown")
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("expected 2 lines, got %d: %s", got, buf.String())
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(LevelInfo)
	logger.SetOutput(&buf)

	child := logger.WithFields(map[string]any{"session": "host-1-abc"})
	child.Info("claimed")

	output := buf.String()
	if !strings.Contains(output, "host-1-abc") {
		t.Errorf("expected base field in output, got: %s", output)
	}
}

func TestLogger_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(LevelInfo)
	logger.SetOutput(&buf)

	logger.ErrorErr("failed", errTest{})

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error text in output, got: %s", buf.String())
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

func TestDebugEnabled(t *testing.T) {
	if NewLogger(LevelInfo).DebugEnabled() {
		t.Error("info level must not report debug enabled")
	}
	if !NewLogger(LevelDebug).DebugEnabled() {
		t.Error("debug level must report debug enabled")
	}
}

func TestSetGlobal_Swap(t *testing.T) {
	orig := Global()
	defer SetGlobal(orig)

	l := NewJSONLogger(LevelDebug)
	SetGlobal(l)
	if Global() != l {
		t.Error("expected Global to return the swapped logger")
	}
}

func TestGlobal_ConcurrentSwapAndLog(t *testing.T) {
	orig := Global()
	defer SetGlobal(orig)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				SetGlobal(NewLogger(LevelError))
				Global().Debug("swapped") // filtered, exercises the pointer
			}
		}()
	}
	wg.Wait()
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelError)
	logger.SetOutput(&buf)

	logger.Info("hidden")
	logger.SetLevel(LevelInfo)
	logger.Info("shown")

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("expected 1 line, got %d", got)
	}
}
