// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "FT", LevelWarn)

	l.Dbgf("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected debug line to be filtered, got %q", buf.String())
	}

	l.Warnf("pool at %d%%", 90)
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected WARN line, got %q", buf.String())
	}
}

func TestLoggerStatLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "USDN", LevelDebug)

	l.In("CFG", 1, 2, 7, 3)
	l.Out("NSU", 2, 1, 7)
	l.Buf("queue", 4, 10)
	l.Stat("n:%d c:1", 5)

	out := buf.String()
	for _, want := range []string{"IN CFG", "OUT NSU", "BUF queue 4/10", "STAT n:5 c:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got %q", want, out)
		}
	}
}
