package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/app"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/config"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/metrics"
	"github.com/scratchlab/sb3-metrics-pipeline/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "help" {
			usage(os.Stdout)
			return 0
		}
		if a == "--version" || a == "-version" {
			fmt.Println("sb3metrics " + version.Current)
			return 0
		}
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return 2
	}
	// The config file layer sits between the environment and the flags, so
	// --config must be known before the flag defaults are registered.
	if path := configFlagValue(args); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
			return 2
		}
	}

	fs := flag.NewFlagSet("sb3metrics", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(os.Stderr) }

	fs.String("config", "", "YAML config file (applied before flags)")
	fs.StringVar(&cfg.InputDir, "input", cfg.InputDir, "Directory containing .sb3 archives (required)")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Output CSV file path (required)")
	fs.StringVar(&cfg.ProgressPath, "progress", cfg.ProgressPath, "Progress file recording completed archives")
	fs.StringVar(&cfg.EngineCmd, "engine-cmd", cfg.EngineCmd, "Analysis engine command line (env: SB3_ENGINE_CMD)")
	fs.DurationVar(&cfg.EngineTimeout, "engine-timeout", cfg.EngineTimeout, "Per-archive engine timeout (env: SB3_ENGINE_TIMEOUT)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent analysis workers, 0 = automatic (env: SB3_WORKERS)")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Submission buffer ahead of the workers (env: SB3_CHUNK_SIZE)")
	fs.Int64Var(&cfg.MaxFileSize, "max-file-size", cfg.MaxFileSize, "Reject archives larger than this many bytes")
	fs.IntVar(&cfg.SaveInterval, "save-interval", cfg.SaveInterval, "Completions between progress flushes (env: SB3_SAVE_INTERVAL)")
	noMetadata := fs.Bool("no-metadata", !cfg.Metadata, "Disable metadata enrichment")
	fs.StringVar(&cfg.MetadataURL, "metadata-url", cfg.MetadataURL, "Metadata service base URL (env: SB3_METADATA_URL)")
	fs.DurationVar(&cfg.MetadataTimeout, "metadata-timeout", cfg.MetadataTimeout, "Per-attempt metadata request timeout (env: SB3_METADATA_TIMEOUT)")
	fs.IntVar(&cfg.MetadataRetries, "metadata-retries", cfg.MetadataRetries, "Extra metadata attempts per archive (env: SB3_METADATA_RETRIES)")
	fs.Float64Var(&cfg.MetadataRPS, "metadata-rps", cfg.MetadataRPS, "Metadata request rate limit, 0 disables (env: SB3_METADATA_RPS)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Tee log output into this file")
	fs.BoolVar(&cfg.Reprocess, "reprocess", cfg.Reprocess, "Ignore recorded progress and recreate the output table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.Metadata = !*noMetadata

	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		usage(os.Stderr)
		return 2
	}

	logOut := io.Writer(os.Stderr)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "open log file: %s\n", err)
			return 2
		}
		defer func() {
			_ = f.Close()
		}()
		logOut = io.MultiWriter(os.Stderr, f)
	}
	logger := log.New(logOut, "", log.LstdFlags)

	engine := &metrics.ExecEngine{
		Command:     cfg.EngineArgv(),
		Timeout:     cfg.EngineTimeout,
		SkillPoints: metrics.DefaultSkillPoints(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal drains: submission stops, in-flight archives finish and
	// their rows land. A second signal cancels outright.
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		close(stop)
		<-sigCh
		logger.Printf("second interrupt: aborting")
		cancel()
	}()

	if _, err := app.Run(ctx, stop, cfg, engine, logger); err != nil {
		logger.Printf("run failed: %s", err)
		return 1
	}
	return 0
}

// configFlagValue pre-scans args for --config so the file can be layered
// under the flag defaults before flag.Parse runs.
func configFlagValue(args []string) string {
	for i, a := range args {
		if a == "--config" || a == "-config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		for _, prefix := range []string{"--config=", "-config="} {
			if strings.HasPrefix(a, prefix) {
				return strings.TrimPrefix(a, prefix)
			}
		}
	}
	return ""
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `sb3metrics: resumable batch analyzer for Scratch .sb3 archives

Usage:
  sb3metrics --input DIR --output FILE [flags]

The analyzer scans DIR for .sb3 archives, runs each through the analysis
engine, and appends one row per archive to the CSV at FILE. Completed
archives are recorded in a progress file, so an interrupted run picks up
where it left off. The first interrupt drains in-flight archives; a second
aborts immediately.

Flags:
  --input DIR              Directory containing .sb3 archives (required)
  --output FILE            Output CSV file path (required)
  --progress FILE          Progress file (default analysis_progress.json)
  --config FILE            YAML config file, applied before flags
  --engine-cmd CMD         Analysis engine command line
  --engine-timeout DUR     Per-archive engine timeout (default 5m)
  --workers N              Concurrent workers, 0 = automatic
  --chunk-size N           Submission buffer ahead of the workers
  --max-file-size BYTES    Size ceiling per archive (default 100 MiB)
  --save-interval N        Completions between progress flushes (default 10)
  --no-metadata            Disable metadata enrichment
  --metadata-url URL       Metadata service base URL
  --metadata-timeout DUR   Per-attempt metadata timeout (default 15s)
  --metadata-retries N     Extra metadata attempts (default 2)
  --metadata-rps RPS       Metadata request rate limit, 0 disables
  --log-file FILE          Tee log output into this file
  --reprocess              Ignore progress, recreate the output table
  --version                Print the version and exit

Environment overrides use the SB3_ prefix, e.g. SB3_WORKERS=8.
Precedence, lowest to highest: defaults, environment, config file, flags.

`)
}
