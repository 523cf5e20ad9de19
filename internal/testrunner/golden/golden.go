// Package golden compares test output against files under testdata.
// Run the tests with -update to rewrite the files from the current output.
package golden

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden files from test output")

// Check compares actual with the golden file at path. With -update the file
// is written instead and the check passes.
func Check(t testing.TB, path, actual string) bool {
	t.Helper()
	if *update {
		if err := write(path, actual); err != nil {
			t.Fatalf("golden: %v", err)
		}
		t.Logf("golden: wrote %s", path)
		return true
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("golden: %v (run with -update to create it)", err)
		return false
	}
	if string(want) == actual {
		return true
	}
	t.Errorf("golden: %s differs:\n%s", path, Diff(string(want), actual))
	return false
}

func write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden file directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Diff lists the lines that differ between want and got, one "-"/"+" pair
// per line number.
func Diff(want, got string) string {
	wl, gl := strings.Split(want, "\n"), strings.Split(got, "\n")

	var b strings.Builder
	for i := 0; i < max(len(wl), len(gl)); i++ {
		var w, g string
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if w != g {
			fmt.Fprintf(&b, "line %d:\n- %s\n+ %s\n", i+1, w, g)
		}
	}
	return b.String()
}
