package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/mockapi"
)

func main() {
	addr := defaultString("MOCK_SCRATCH_API_ADDR", ":8081")
	failIDs := defaultString("MOCK_SCRATCH_API_FAIL_IDS", "")

	fs := flag.NewFlagSet("mock-scratch-api", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&failIDs, "fail-ids", failIDs, "Comma-separated project ids whose first request returns HTTP 500 (also supports env: MOCK_SCRATCH_API_FAIL_IDS)")
	synthesize := fs.Bool("synthesize", true, "Answer unknown ids with a generated record instead of 404")
	_ = fs.Parse(os.Args[1:])

	srv := mockapi.New(*synthesize)
	for _, raw := range splitCSV(failIDs) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "invalid fail id %q: %v\n", raw, err)
			os.Exit(2)
		}
		srv.FailNext(id, 1)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-scratch-api listening on %s (synthesize=%t)\n", addr, *synthesize)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
