package scan_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/scan"
)

func TestList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"300.sb3", "100.sb3", "200.SB3", "readme.txt", "101.sb3.bak"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.sb3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := scan.List(dir, ".sb3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"100.sb3", "200.SB3", "300.sb3"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestListMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := scan.List(filepath.Join(t.TempDir(), "absent"), ".sb3"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
