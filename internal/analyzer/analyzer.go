// Package analyzer produces verdicts for selected media. The only
// implementation shipped is a simulation: it waits a fixed latency and draws
// a plausible-looking result. A real detection backend plugs in by
// implementing Analyzer.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/model"
)

// Analyzer turns a handle into a verdict. Implementations must honour ctx
// cancellation and must not retain the handle after returning.
type Analyzer interface {
	Analyze(ctx context.Context, h *media.Handle) (*model.AnalysisResult, error)
}

var ErrAnalysisFailed = errors.New("analysis failed")

const (
	DefaultLatency = 3500 * time.Millisecond
	FakeThreshold  = 0.6
)

// New builds the analyzer named by kind ("simulated" or "failing").
func New(kind string, latency time.Duration, seed uint64) (Analyzer, error) {
	switch kind {
	case "", "simulated":
		return NewSimulated(latency, seed), nil
	case "failing":
		return &Failing{Latency: latency}, nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", kind)
	}
}

type Simulated struct {
	Latency time.Duration
	Source  rand.Source
}

// NewSimulated returns a simulation backed by a concurrency-safe source. A
// zero seed seeds from the clock.
func NewSimulated(latency time.Duration, seed uint64) *Simulated {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := &rand.LockedSource{}
	src.Seed(seed)
	return &Simulated{Latency: latency, Source: src}
}

func (s *Simulated) Analyze(ctx context.Context, h *media.Handle) (*model.AnalysisResult, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: no media", ErrAnalysisFailed)
	}

	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return s.Draw(h.Name, h.Kind), nil
}

// Draw generates a result without waiting. Draw order is fixed so a
// deterministic source yields a deterministic result.
func (s *Simulated) Draw(name string, kind model.MediaKind) *model.AnalysisResult {
	fake := NameSuggestsFake(name) || s.uniform(0, 1) > FakeThreshold

	r := &model.AnalysisResult{IsReal: !fake}
	if fake {
		r.Confidence = s.uniform(75, 95)
	} else {
		r.Confidence = s.uniform(92, 99)
	}
	r.ProcessingTime = s.uniform(1.2, 2.0)
	r.Metrics = model.Metrics{
		Accuracy:  s.uniform(0.95, 0.99),
		Precision: s.uniform(0.93, 0.98),
		Recall:    s.uniform(0.94, 0.98),
		F1Score:   s.uniform(0.94, 0.98),
	}

	r.DetectedArtifacts = []string{}
	if fake {
		k := s.intn(model.MinArtifacts, model.MaxArtifacts+1)
		r.DetectedArtifacts = append(r.DetectedArtifacts, model.ArtifactCatalog[:k]...)
	}

	r.FacesDetected = s.intn(1, 3)
	r.FramesAnalyzed = 1
	if kind == model.KindVideo {
		r.FramesAnalyzed = s.intn(30, 120)
	}
	return r
}

// NameSuggestsFake is the filename half of the verdict policy.
func NameSuggestsFake(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "fake") || strings.Contains(n, "deepfake")
}

func (s *Simulated) uniform(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.Source}.Rand()
}

// intn draws an integer uniformly from [lo, hi).
func (s *Simulated) intn(lo, hi int) int {
	v := int(math.Floor(s.uniform(float64(lo), float64(hi))))
	if v >= hi {
		v = hi - 1
	}
	return v
}

// Failing always fails after its latency.
type Failing struct {
	Latency time.Duration
}

func (f *Failing) Analyze(ctx context.Context, h *media.Handle) (*model.AnalysisResult, error) {
	timer := time.NewTimer(f.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return nil, fmt.Errorf("%w: detection backend unavailable", ErrAnalysisFailed)
}
