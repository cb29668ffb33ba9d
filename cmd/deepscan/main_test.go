package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YannKr/deepguard/internal/analyzer"
	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/model"
	"github.com/YannKr/deepguard/internal/progress"
	"github.com/YannKr/deepguard/internal/report"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestProgressBarWidths(t *testing.T) {
	for _, tc := range []struct {
		percent, filled int
	}{
		{0, 0},
		{50, 15},
		{100, 30},
	} {
		bar := progressBar(progress.Snapshot{Percent: tc.percent, StageLabel: progress.Stages[0]})

		open := strings.Index(bar, "[")
		open = open + strings.Index(bar[open+1:], "[") + 1
		end := strings.Index(bar[open:], "]") + open
		inner := bar[open+1 : end]

		assert.Len(t, inner, barWidth, "percent %d", tc.percent)
		assert.Equal(t, tc.filled, strings.Count(inner, "#"), "percent %d", tc.percent)
		assert.True(t, strings.HasPrefix(bar, "\r[*] "))
		assert.Contains(t, bar, progress.Stages[0])
	}
}

func TestPrintReport(t *testing.T) {
	res := &model.AnalysisResult{
		IsReal:            false,
		Confidence:        81.26,
		ProcessingTime:    1.53,
		Metrics:           model.Metrics{Accuracy: 0.97, Precision: 0.95, Recall: 0.96, F1Score: 0.96},
		DetectedArtifacts: model.ArtifactCatalog[:2],
		FacesDetected:     2,
		FramesAnalyzed:    64,
	}
	rep := report.Build(res, "", model.KindVideo)

	var buf bytes.Buffer
	printReport(&buf, &rep)
	out := buf.String()

	assert.Contains(t, out, "Verdict:     DEEPFAKE DETECTED")
	assert.Contains(t, out, "Confidence:  81.3%")
	assert.Contains(t, out, "Frames:      64")
	assert.Contains(t, out, "F1 Score:    96.0%")
	assert.Contains(t, out, "[!] "+model.ArtifactCatalog[0])
	assert.Contains(t, out, "Suspicious region: top 25% left 25% size 50x50%")
}

func TestScan(t *testing.T) {
	input, err := media.NewInput(filepath.Join(t.TempDir(), "work"), 0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "portrait.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0644))

	pcfg := progress.Config{Duration: 20 * time.Millisecond, Tick: 2 * time.Millisecond, Grace: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, scan(ctx, input, analyzer.NewSimulated(time.Millisecond, 9), pcfg, path))
	assert.Error(t, scan(ctx, input, &analyzer.Failing{Latency: time.Millisecond}, pcfg, path))

	entries, err := os.ReadDir(input.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "each scan releases its media")
}
