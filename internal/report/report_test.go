package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simatest/internal/runner"
	"simatest/internal/store"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name   string
		totals runner.Totals
		want   string
	}{
		{"all passed", runner.Totals{Attempted: 6}, "All 6 tests PASSED!"},
		{"one failed", runner.Totals{Attempted: 2, Failed: 1}, "1 out of 2 tests FAILED"},
		{"all failed", runner.Totals{Attempted: 3, Failed: 3}, "3 out of 3 tests FAILED"},
		{"empty", runner.Totals{}, "All 0 tests PASSED!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.totals))
		})
	}
}

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	pass := runner.Target{Name: "cam_config", Kind: runner.KindDoctest, Path: "cime_config/cam_config.py"}
	fail := runner.Target{Name: "test_registry", Kind: runner.KindUnittest, Path: "test/unit/test_registry.py"}

	p.Progress(pass)
	p.Progress(fail)
	p.Failure(runner.Outcome{Target: fail, ExitCode: 1})
	p.Summary(runner.Totals{Attempted: 2, Failed: 1})

	want := strings.Join([]string{
		"Running doctest on cime_config/cam_config.py",
		"Running unittest on test/unit/test_registry.py",
		"ERROR: unittest test/unit/test_registry.py failed with status 1",
		"1 out of 2 tests FAILED",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_AllPassed(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Summary(runner.Totals{Attempted: 6})
	assert.Equal(t, "All 6 tests PASSED!\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	outcomes := []runner.Outcome{
		{
			Target:   runner.Target{Name: "a", Kind: runner.KindDoctest, Path: "a.py"},
			Strategy: runner.GenericDriver,
			Duration: 42 * time.Millisecond,
		},
		{
			Target:   runner.Target{Name: "b", Kind: runner.KindUnittest, Path: "b.py"},
			Strategy: runner.SelfHosted,
			ExitCode: 127,
			Err:      errors.New("python3 not found"),
		},
	}
	r := runner.Report{
		RunID:      "run-json",
		Root:       "/src/CAM-SIMA",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Outcomes:   outcomes,
		Totals:     runner.Tally(outcomes),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-json", got["run_id"])
	assert.Equal(t, "1 out of 2 tests FAILED", got["summary"])
	assert.EqualValues(t, 2, got["attempted"])
	assert.EqualValues(t, 1, got["failed"])
	assert.NotContains(t, got, "interrupted")

	items, ok := got["outcomes"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "generic-driver", first["strategy"])
	assert.EqualValues(t, 42, first["duration_ms"])
	assert.Equal(t, false, first["failed"])
	second := items[1].(map[string]interface{})
	assert.Equal(t, "python3 not found", second["error"])
	assert.Equal(t, true, second["failed"])
}

func TestHistoryMarkdown(t *testing.T) {
	assert.Contains(t, HistoryMarkdown(nil), "No runs recorded")

	start := time.Now()
	md := HistoryMarkdown([]store.RunRecord{
		{ID: "0123456789abcdef", StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond), Attempted: 6},
		{ID: "short", StartedAt: start, FinishedAt: start, Attempted: 2, Failed: 1, Interrupted: true},
	})
	assert.Contains(t, md, "| `01234567` |")
	assert.Contains(t, md, "1.5s")
	assert.Contains(t, md, "All 6 tests PASSED!")
	assert.Contains(t, md, "1 out of 2 tests FAILED (interrupted)")
}

func TestRunMarkdown(t *testing.T) {
	md := RunMarkdown(store.RunRecord{
		ID:        "run-1",
		Root:      "/src",
		Attempted: 2,
		Failed:    1,
		Outcomes: []store.OutcomeRecord{
			{Kind: "doctest", Path: "a.py", Strategy: "self-hosted", DurationMs: 12},
			{Kind: "unittest", Path: "b.py", Strategy: "self-hosted", ExitCode: 1, DurationMs: 30},
		},
	})
	assert.Contains(t, md, "| doctest | `a.py` | self-hosted | ok | 12ms |")
	assert.Contains(t, md, "**failed (1)**")
	assert.Contains(t, md, "1 out of 2 tests FAILED")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(HistoryMarkdown(nil), 0)
	require.NoError(t, err)
	assert.Contains(t, out, "Test history")
}
