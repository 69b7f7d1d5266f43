package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(1000)
	p.Update(500, "capturing")
	if !strings.Contains(buf.String(), " 50.0%") || !strings.Contains(buf.String(), "capturing") {
		t.Errorf("output = %q, want 50%% with label", buf.String())
	}

	p.Update(5000, "analyzing")
	if !strings.Contains(buf.String(), "100.0%") {
		t.Errorf("output = %q, want clamped 100%%", buf.String())
	}

	p.Finish()
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("Finish() did not end the line")
	}

	p.Error(errors.New("enable flag failed"))
	if !strings.Contains(buf.String(), "enable flag failed") {
		t.Errorf("output = %q, want error message", buf.String())
	}
}

func TestSimpleProgress_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(0)
	p.Update(10, "started")
	if buf.Len() != 0 {
		t.Errorf("output = %q, want nothing for an empty range", buf.String())
	}
}
