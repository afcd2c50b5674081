package util_test

import (
	"strings"
	"testing"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/util"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	t.Run("flattens newlines", func(t *testing.T) {
		got := util.Sanitize("zip: not a valid\nzip file\r\n")
		if got != "zip: not a valid zip file" {
			t.Fatalf("unexpected output: %q", got)
		}
	})

	t.Run("drops control characters", func(t *testing.T) {
		got := util.Sanitize("bad\x00byte\x1b[31m")
		if strings.ContainsAny(got, "\x00\x1b") {
			t.Fatalf("control characters survived: %q", got)
		}
	})

	t.Run("truncates long messages", func(t *testing.T) {
		got := util.Sanitize(strings.Repeat("x", 1000))
		if len(got) > 310 || !strings.HasSuffix(got, "...") {
			t.Fatalf("expected bounded message, got len=%d", len(got))
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		if got := util.Sanitize(""); got != "" {
			t.Fatalf("expected empty, got %q", got)
		}
	})
}
