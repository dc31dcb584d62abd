package python

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"simatest/internal/tactile"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"Python 3.10.4\n":     "3.10.4",
		"Python 2.7.18":       "2.7.18",
		"Python 3.13.0rc1":    "3.13.0rc1",
		"command not found\n": "",
		"":                    "",
	}
	for in, want := range cases {
		if got := ParseVersion(in); got != want {
			t.Fatalf("ParseVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCandidates(t *testing.T) {
	if got := Candidates("auto"); len(got) != 2 || got[0] != "python3" {
		t.Fatalf("unexpected auto candidates: %v", got)
	}
	if got := Candidates(""); len(got) != 2 {
		t.Fatalf("expected defaults for empty name, got %v", got)
	}
	if got := Candidates("/opt/py/bin/python3.11"); len(got) != 1 || got[0] != "/opt/py/bin/python3.11" {
		t.Fatalf("unexpected explicit candidates: %v", got)
	}
}

func TestLocateNotFound(t *testing.T) {
	_, err := Locate(context.Background(), nil, []string{"simatest-no-such-python"})
	if !errors.Is(err, ErrNoInterpreter) {
		t.Fatalf("expected ErrNoInterpreter, got %v", err)
	}
}

func TestLocateProbesVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as fake interpreter")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fakepython")
	script := "#!/bin/sh\necho 'Python 3.11.9' >&2\n"
	if err := os.WriteFile(fake, []byte(script), 0755); err != nil {
		t.Fatalf("write fake interpreter: %v", err)
	}

	interp, err := Locate(context.Background(), tactile.NewDirectExecutor(), []string{"simatest-missing", fake})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if interp.Path != fake {
		t.Fatalf("unexpected path: %s", interp.Path)
	}
	if interp.Version != "3.11.9" {
		t.Fatalf("unexpected version: %q", interp.Version)
	}
}

func TestLocateWithoutExecutorSkipsProbe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh being on PATH")
	}
	interp, err := Locate(context.Background(), nil, []string{"sh"})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if interp.Version != "" {
		t.Fatalf("expected no version without executor, got %q", interp.Version)
	}
}
