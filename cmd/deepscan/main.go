package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/YannKr/deepguard/internal/analyzer"
	"github.com/YannKr/deepguard/internal/config"
	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/progress"
	"github.com/YannKr/deepguard/internal/report"
	"github.com/YannKr/deepguard/internal/session"
)

var (
	infoColor    = color.New(color.FgCyan).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

const barWidth = 30

func progressBar(s progress.Snapshot) string {
	filled := s.Percent * barWidth / 100
	return fmt.Sprintf("\r%s [%s%s] %3d%% %-22s",
		infoColor("[*]"),
		strings.Repeat("#", filled),
		strings.Repeat(".", barWidth-filled),
		s.Percent,
		s.StageLabel,
	)
}

func main() {
	cfg := config.Load()

	var (
		seed     = flag.Uint64("seed", cfg.RandomSeed, "Random seed for the simulated analyzer (0 = clock)")
		latency  = flag.Duration("latency", cfg.AnalysisLatency, "Simulated analysis latency")
		duration = flag.Duration("duration", cfg.ProgressDuration, "Progress animation length")
		kind     = flag.String("analyzer", cfg.Analyzer, "Analyzer to use (simulated, failing)")
		maxBytes = flag.Int64("max-bytes", cfg.MaxUploadBytes, "Largest accepted file in bytes")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() == 0 {
		fmt.Println("Usage:")
		fmt.Println("  deepscan [flags] <file> [file...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workDir, err := os.MkdirTemp("", "deepscan-*")
	if err != nil {
		printError("Failed to create work directory: %v", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	input, err := media.NewInput(workDir, *maxBytes)
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
	an, err := analyzer.New(*kind, *latency, *seed)
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}

	pcfg := progress.DefaultConfig()
	pcfg.Duration = *duration

	failed := 0
	for _, path := range flag.Args() {
		if ctx.Err() != nil {
			break
		}
		if err := scan(ctx, input, an, pcfg, path); err != nil {
			printError("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		os.RemoveAll(workDir)
		os.Exit(1)
	}
}

// scan runs one file through a fresh session and prints its report.
func scan(ctx context.Context, input *media.Input, an analyzer.Analyzer, pcfg progress.Config, path string) error {
	f, err := media.FromPath(path)
	if err != nil {
		return err
	}

	finished := make(chan session.Event, 1)
	c := session.New(path, session.Deps{
		Input:    input,
		Analyzer: an,
		Progress: pcfg,
		Listener: func(e session.Event) {
			switch e.Type {
			case session.EventProgress:
				fmt.Print(progressBar(e.Data.(progress.Snapshot)))
			case session.EventResult, session.EventError:
				select {
				case finished <- e:
				default:
				}
			}
		},
	})
	defer c.Close()

	info, err := c.Select(ctx, f)
	if err != nil {
		return err
	}
	printInfo("Analyzing %s (%s, %.2f MB)", info.Name, info.Kind, float64(info.Size)/(1024*1024))

	if err := c.Analyze(); err != nil {
		return err
	}

	var e session.Event
	select {
	case e = <-finished:
	case <-ctx.Done():
		fmt.Println()
		return ctx.Err()
	}
	fmt.Println()

	if e.Type == session.EventError {
		return fmt.Errorf("%s", session.FailureMessage)
	}
	snap := e.Data.(session.Snapshot)
	printReport(os.Stdout, snap.Report)
	return nil
}

func printReport(w io.Writer, rep *report.Report) {
	verdict := successColor(rep.Label)
	if !rep.IsReal {
		verdict = alertColor(rep.Label)
	}
	conf := rep.ConfidenceText + "%"
	switch rep.Severity {
	case report.SeveritySuccess:
		conf = successColor(conf)
	case report.SeverityWarning:
		conf = warningColor(conf)
	default:
		conf = errorColor(conf)
	}

	fmt.Fprintf(w, "    Verdict:     %s\n", verdict)
	fmt.Fprintf(w, "    Confidence:  %s\n", conf)
	fmt.Fprintf(w, "    Processing:  %ss\n", rep.ProcessingTime)
	fmt.Fprintf(w, "    Faces:       %d\n", rep.FacesDetected)
	fmt.Fprintf(w, "    %-12s %d\n", rep.FramesLabel+":", rep.FramesAnalyzed)
	for _, m := range rep.Metrics {
		fmt.Fprintf(w, "    %-12s %s%%\n", m.Label+":", m.Percent)
	}
	if rep.NoArtifacts != "" {
		fmt.Fprintf(w, "    %s\n", successColor(rep.NoArtifacts))
	}
	for _, a := range rep.Artifacts {
		fmt.Fprintf(w, "    %s %s\n", warningColor("[!]"), a)
	}
	if r := rep.SuspiciousRegion; r != nil {
		fmt.Fprintf(w, "    Suspicious region: top %d%% left %d%% size %dx%d%%\n", r.Top, r.Left, r.Width, r.Height)
	}
}
