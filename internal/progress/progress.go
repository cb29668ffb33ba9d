// Package progress drives the analysis progress animation: a fixed-duration
// tick loop that moves from 0 to 100 through four labelled stages,
// independent of how long the analysis itself takes.
package progress

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

var ErrAlreadyRunning = errors.New("progress already running")

type State string

const (
	Inactive State = "inactive"
	Running  State = "running"
	Complete State = "complete"
)

// Stages are the labels shown while the animation runs.
var Stages = []string{
	"Detecting faces",
	"Extracting features",
	"Running neural analysis",
	"Generating report",
}

// stage i+1 begins once progress reaches stageThresholds[i]
var stageThresholds = []float64{25, 50, 75}

type Config struct {
	Duration time.Duration
	Tick     time.Duration
	Grace    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Duration: 3 * time.Second,
		Tick:     50 * time.Millisecond,
		Grace:    300 * time.Millisecond,
	}
}

// Ticks is the number of ticks needed to reach 100.
func (c Config) Ticks() int {
	if c.Tick <= 0 {
		return 1
	}
	n := int((c.Duration + c.Tick - 1) / c.Tick)
	if n < 1 {
		n = 1
	}
	return n
}

type Snapshot struct {
	State      State   `json:"state"`
	Progress   float64 `json:"progress"`
	Percent    int     `json:"percent"`
	Stage      int     `json:"stage"`
	StageLabel string  `json:"stageLabel"`
}

type StageView struct {
	Label    string
	Active   bool
	Complete bool
}

// StageViews reports each stage as active, complete or pending.
func (s Snapshot) StageViews() []StageView {
	views := make([]StageView, len(Stages))
	for i, label := range Stages {
		views[i] = StageView{
			Label:    label,
			Active:   i == s.Stage,
			Complete: i < s.Stage || s.Progress >= 100,
		}
	}
	return views
}

// Presenter runs one animation at a time. It can be restarted once the
// previous run completed or was stopped.
type Presenter struct {
	cfg Config

	mu       sync.Mutex
	state    State
	progress float64
	stage    int
	run      uint64
	cancel   context.CancelFunc
	exited   chan struct{}
}

func New(cfg Config) *Presenter {
	return &Presenter{cfg: cfg, state: Inactive}
}

// Start resets progress and begins ticking. onTick is called from the
// ticking goroutine after every step. The returned channel is closed once
// progress reached 100 and the grace delay elapsed; it is never closed if
// the run is cancelled through ctx or Stop.
func (p *Presenter) Start(ctx context.Context, onTick func(Snapshot)) (<-chan struct{}, error) {
	p.mu.Lock()
	if p.state == Running {
		p.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p.state = Running
	p.progress = 0
	p.stage = 0
	p.run++
	run := p.run
	ctx, p.cancel = context.WithCancel(ctx)
	exited := make(chan struct{})
	p.exited = exited
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(exited)
		if p.loop(ctx, run, onTick) {
			close(done)
		}
	}()
	return done, nil
}

func (p *Presenter) loop(ctx context.Context, run uint64, onTick func(Snapshot)) bool {
	total := p.cfg.Ticks()
	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		snap, ok := p.advance(run, i, total)
		if !ok {
			return false
		}
		if onTick != nil {
			onTick(snap)
		}
		if snap.Progress >= 100 {
			break
		}
	}
	ticker.Stop()

	grace := time.NewTimer(p.cfg.Grace)
	defer grace.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-grace.C:
	}

	return p.finish(run)
}

func (p *Presenter) advance(run uint64, tick, total int) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != run || p.state != Running {
		return Snapshot{}, false
	}

	next := math.Min(100, float64(tick)*100/float64(total))
	if next > p.progress {
		p.progress = next
	}
	for p.stage < len(stageThresholds) && p.progress >= stageThresholds[p.stage] {
		p.stage++
	}
	return p.snapshotLocked(), true
}

func (p *Presenter) finish(run uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != run || p.state != Running {
		return false
	}
	p.state = Complete
	return true
}

// Stop cancels a running animation and waits for its goroutine to exit, so
// no tick is delivered after Stop returns. It must not be called from
// onTick.
func (p *Presenter) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	exited := p.exited
	p.exited = nil
	p.run++
	p.state = Inactive
	p.progress = 0
	p.stage = 0
	p.mu.Unlock()

	if exited != nil {
		<-exited
	}
}

func (p *Presenter) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Presenter) snapshotLocked() Snapshot {
	return Snapshot{
		State:      p.state,
		Progress:   p.progress,
		Percent:    int(math.Round(p.progress)),
		Stage:      p.stage,
		StageLabel: Stages[p.stage],
	}
}
