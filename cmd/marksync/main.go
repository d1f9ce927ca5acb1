// Package main is the entry point for marksync.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/marksync/internal/app"
	"github.com/dshills/marksync/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, code, exit := parseFlags(os.Args[1:])
	if exit {
		return code
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parseFlags parses the command line. When exit is true the program
// should stop with code.
func parseFlags(args []string) (opts app.Options, code int, exit bool) {
	fs := flag.NewFlagSet("marksync", flag.ContinueOnError)
	var showVersion bool
	var showHelp bool

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	fs.StringVar(&opts.LogFile, "log-file", "", "Write logs to this file")
	fs.BoolVar(&opts.TUI, "tui", false, "Show the live preview in the terminal")
	fs.BoolVar(&opts.TUI, "t", false, "Show the live preview in the terminal (shorthand)")
	fs.BoolVar(&opts.Once, "once", false, "Render once, print and exit")
	fs.StringVar(&opts.PatchLog, "patch-log", "", "Record every preview patch to this file")
	fs.StringVar(&opts.Replay, "replay", "", "Rebuild and print the preview from a patch log")
	fs.IntVar(&opts.Width, "width", app.DefaultWidth, "Output width in print and replay mode")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "marksync - live markdown preview\n\n")
		fmt.Fprintf(os.Stderr, "Usage: marksync [options] file.md\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  marksync -tui README.md              Preview in the terminal while you edit\n")
		fmt.Fprintf(os.Stderr, "  marksync -once README.md             Print the rendered preview\n")
		fmt.Fprintf(os.Stderr, "  marksync -patch-log p.jsonl doc.md   Record patches while following doc.md\n")
		fmt.Fprintf(os.Stderr, "  marksync -replay p.jsonl             Rebuild the preview from a recording\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, 2, true
	}

	if showHelp {
		fs.Usage()
		return opts, 0, true
	}

	if showVersion {
		fmt.Printf("marksync %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return opts, 0, true
	}

	if opts.LogLevel != "" && !logging.ValidLevel(opts.LogLevel) {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, 1, true
	}

	switch rest := fs.Args(); {
	case len(rest) > 1:
		fmt.Fprintf(os.Stderr, "Error: expected one file, got %d\n", len(rest))
		return opts, 1, true
	case len(rest) == 1:
		opts.File = rest[0]
	case opts.Replay == "":
		fs.Usage()
		return opts, 1, true
	}

	return opts, 0, false
}
