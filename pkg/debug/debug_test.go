package debug

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLogger, prevEnabled := logger, Enabled()
	SetOutput(log.New(&buf, "", 0))
	t.Cleanup(func() {
		logger = prevLogger
		SetEnabled(prevEnabled)
	})
	return &buf
}

func TestLog_Disabled(t *testing.T) {
	buf := capture(t)
	SetEnabled(false)
	Log("hidden %d", 1)
	LogTiming("op", time.Second)
	LogEnterExit("fn")()
	Dump("v", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLog_Enabled(t *testing.T) {
	buf := capture(t)
	SetEnabled(true)
	Log("hello %s", "world")
	LogEnterExit("render")()
	out := buf.String()
	for _, want := range []string{"hello world", "-> render", "<- render"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestAssert(t *testing.T) {
	capture(t)
	SetEnabled(true)
	Assert(true, "fine")

	defer func() {
		if recover() == nil {
			t.Error("expected panic from failed assertion")
		}
	}()
	Assert(false, "broken")
}
