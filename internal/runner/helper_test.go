package runner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"simatest/internal/tactile"
)

// fakePythonEnv makes the test binary behave like a Python interpreter.
const fakePythonEnv = "SIMATEST_FAKE_PYTHON"

func TestMain(m *testing.M) {
	if os.Getenv(fakePythonEnv) == "1" {
		os.Exit(fakePython(os.Args[1:]))
	}
	goleak.VerifyTestMain(m)
}

// fakePython understands "<path>" and "-m <module> <path>". It echoes how it
// was invoked and exits with the status named by a "# exit: N" line in the
// module, or 0.
func fakePython(args []string) int {
	mode, module, path := "self", "", ""
	switch {
	case len(args) == 3 && args[0] == "-m":
		mode, module, path = "generic", args[1], args[2]
	case len(args) == 1:
		path = args[0]
	default:
		fmt.Fprintf(os.Stderr, "fake python: bad args %q\n", args)
		return 2
	}
	fmt.Printf("fake-python mode=%s module=%s path=%s\n", mode, module, path)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake python: %v\n", err)
		return 2
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "# exit:"); ok {
			code, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 2
			}
			return code
		}
	}
	return 0
}

// fakeInterpreter returns the path of the running test binary.
func fakeInterpreter(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return exe
}

// fakeExecutor passes the fake-python switch to every child.
func fakeExecutor() *tactile.DirectExecutor {
	cfg := tactile.DefaultExecutorConfig()
	cfg.Environment = []string{fakePythonEnv + "=1"}
	return tactile.NewDirectExecutorWithConfig(cfg)
}

// writeModule writes a fake Python module under root.
func writeModule(t *testing.T, root, rel string, exitCode int, selfHosted bool) {
	t.Helper()
	var b strings.Builder
	b.WriteString("\"\"\"fake module\"\"\"\n")
	fmt.Fprintf(&b, "# exit: %d\n", exitCode)
	if selfHosted {
		b.WriteString("if __name__ == '__main__':\n    import doctest\n    doctest.testmod()\n")
	}
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write module: %v", err)
	}
}

// recorder is a Reporter that keeps every event.
type recorder struct {
	progress []Target
	failures []Outcome
	totals   []Totals
}

func (r *recorder) Progress(t Target) { r.progress = append(r.progress, t) }
func (r *recorder) Failure(o Outcome) { r.failures = append(r.failures, o) }
func (r *recorder) Summary(t Totals) { r.totals = append(r.totals, t) }
