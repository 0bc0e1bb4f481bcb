// Package testutil holds shared fixture and comparison helpers for the
// package tests. It must not import pkg/erg so that in-package tests can
// use it without an import cycle.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// WritePair writes an ERG binary and its info schema into dir and returns
// the binary path. The schema lands at the "<name>.info" location Open
// resolves by default.
func WritePair(t *testing.T, dir, name, info string, binary []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, binary, 0o644); err != nil {
		t.Fatalf("write binary fixture: %v", err)
	}
	if err := os.WriteFile(path+".info", []byte(info), 0o644); err != nil {
		t.Fatalf("write info fixture: %v", err)
	}
	return path
}

// FloatComparer compares float64 values with an absolute tolerance wide
// enough to absorb float32 storage and affine round trips.
var FloatComparer = cmp.Comparer(func(x, y float64) bool {
	return x == y || math.Abs(x-y) < 1e-6
})

// RequireSamplesEqual fails the test when two sample slices differ beyond
// the float tolerance.
func RequireSamplesEqual(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, FloatComparer); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
}
