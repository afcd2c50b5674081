package sb3_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/sb3"
)

// writeArchive creates an .sb3 file containing the given project.json body.
func writeArchive(t *testing.T, dir, name, projectJSON string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("project.json")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(projectJSON)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

const twoTargetProject = `{
	"targets": [
		{"name": "Stage", "isStage": true, "blocks": {}},
		{
			"name": "Sprite1",
			"isStage": false,
			"blocks": {
				"a": {"opcode": "event_whenflagclicked", "next": "b"},
				"b": {"opcode": "motion_movesteps", "next": null},
				"var1": ["my variable", 0]
			}
		}
	]
}`

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("decodes targets and counts blocks", func(t *testing.T) {
		path := writeArchive(t, dir, "100.sb3", twoTargetProject)
		p, err := sb3.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Targets) != 2 {
			t.Fatalf("expected 2 targets, got %d", len(p.Targets))
		}
		// The variable reporter entry must not count as a block.
		if got := p.CountBlocks(); got != 2 {
			t.Fatalf("expected 2 blocks, got %d", got)
		}
		if got := p.NumSprites(); got != 1 {
			t.Fatalf("expected 1 sprite, got %d", got)
		}
		if len(p.Raw) == 0 {
			t.Fatalf("expected raw project.json to be preserved")
		}
	})

	t.Run("empty project has zero blocks", func(t *testing.T) {
		path := writeArchive(t, dir, "empty.sb3", `{"targets": [{"name": "Stage", "isStage": true, "blocks": {}}]}`)
		p, err := sb3.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := p.CountBlocks(); got != 0 {
			t.Fatalf("expected 0 blocks, got %d", got)
		}
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.sb3")
		if err := os.WriteFile(path, []byte("not a zip at all"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		if _, err := sb3.Load(path); err == nil {
			t.Fatalf("expected error for non-zip input")
		}
	})

	t.Run("missing project.json", func(t *testing.T) {
		path := filepath.Join(dir, "nometa.sb3")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create archive: %v", err)
		}
		zw := zip.NewWriter(f)
		w, err := zw.Create("costume.svg")
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte("<svg/>")); err != nil {
			t.Fatalf("write entry: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("close zip: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close file: %v", err)
		}
		if _, err := sb3.Load(path); err == nil {
			t.Fatalf("expected error for archive without project.json")
		}
	})

	t.Run("malformed project.json", func(t *testing.T) {
		path := writeArchive(t, dir, "badjson.sb3", `{"targets": [`)
		if _, err := sb3.Load(path); err == nil {
			t.Fatalf("expected error for malformed project.json")
		}
	})
}
