package main

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestVersionOutput(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})

	Version = "0.1.0-test"
	GitCommit = "abc123"
	BuildDate = "2026-10-01"

	// An unreadable config must not matter to version.
	out, err := executeCommand(t, "version", "--config", "/nonexistent/chaoslab.yaml")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	for _, want := range []string{
		"Chaoslab 0.1.0-test",
		"Git Commit: abc123",
		"Build Date: 2026-10-01",
		"Go Version: " + runtime.Version(),
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
