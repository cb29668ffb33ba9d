// Package session owns the per-visitor analysis workflow: the selected
// handle, the in-flight run, its progress animation and the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/YannKr/deepguard/internal/analyzer"
	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/model"
	"github.com/YannKr/deepguard/internal/progress"
	"github.com/YannKr/deepguard/internal/report"
)

var (
	ErrNoMedia          = errors.New("no media selected")
	ErrAnalysisInFlight = errors.New("analysis in progress")
	ErrClosed           = errors.New("session closed")
)

// FailureMessage is shown when the analyzer returns an error.
const FailureMessage = "Analysis failed. Please try again."

type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Listener receives events in mutation order. It is called with the
// controller lock held, so it must not block or call back into the
// controller.
type Listener func(Event)

type Deps struct {
	Input    *media.Input
	Analyzer analyzer.Analyzer
	Progress progress.Config
	Listener Listener
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	ID       string                `json:"id"`
	State    model.SessionState    `json:"state"`
	Media    *model.MediaInfo      `json:"media,omitempty"`
	Progress progress.Snapshot     `json:"progress"`
	Result   *model.AnalysisResult `json:"result,omitempty"`
	Report   *report.Report        `json:"report,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type run struct {
	gen       uint64
	cancel    context.CancelFunc
	presenter *progress.Presenter
}

type Controller struct {
	id   string
	deps Deps

	mu       sync.Mutex
	state    model.SessionState
	handle   *media.Handle
	preview  string
	noPrev   bool
	result   *model.AnalysisResult
	progress progress.Snapshot
	lastErr  string
	gen      uint64
	run      *run
	closed   bool
}

func New(id string, deps Deps) *Controller {
	if deps.Progress == (progress.Config{}) {
		deps.Progress = progress.DefaultConfig()
	}
	return &Controller{
		id:       id,
		deps:     deps,
		state:    model.StateIdle,
		progress: idleProgress(),
	}
}

// IdleSnapshot is the state of a visitor that has no controller yet.
func IdleSnapshot(id string) Snapshot {
	return Snapshot{ID: id, State: model.StateIdle, Progress: idleProgress()}
}

func idleProgress() progress.Snapshot {
	return progress.Snapshot{State: progress.Inactive, StageLabel: progress.Stages[0]}
}

func (c *Controller) ID() string { return c.id }

// Select accepts f as the current media, replacing and releasing any
// previous handle and discarding any result. It is rejected while an
// analysis is running.
func (c *Controller) Select(ctx context.Context, f media.File) (model.MediaInfo, error) {
	if err := c.selectable(); err != nil {
		return model.MediaInfo{}, err
	}

	h, err := c.deps.Input.Select(ctx, f)
	if err != nil {
		return model.MediaInfo{}, err
	}

	c.mu.Lock()
	if err := c.selectableLocked(); err != nil {
		c.mu.Unlock()
		h.Release()
		return model.MediaInfo{}, err
	}
	old := c.handle
	c.handle = h
	c.preview = ""
	c.noPrev = false
	c.result = nil
	c.lastErr = ""
	c.progress = idleProgress()
	c.state = model.StateFileSelected
	c.emitLocked(EventState, c.snapshotLocked())
	c.mu.Unlock()

	if old != nil {
		old.Release()
	}
	go c.awaitPreview(h)

	slog.Info("media selected", "session", c.id, "handle", h.ID, "kind", h.Kind, "size", h.Size)
	return h.Info(""), nil
}

func (c *Controller) selectable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectableLocked()
}

func (c *Controller) selectableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.state == model.StateAnalyzing {
		return ErrAnalysisInFlight
	}
	return nil
}

func (c *Controller) awaitPreview(h *media.Handle) {
	p := h.Preview(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != h {
		return
	}
	c.preview = p
	c.noPrev = h.PreviewErr() != nil
	c.emitLocked(EventState, c.snapshotLocked())
}

// Clear returns to Idle from any state. An in-flight run is cancelled and
// no tick or completion from it is applied afterwards.
func (c *Controller) Clear() {
	c.mu.Lock()
	r, h := c.resetLocked()
	c.emitLocked(EventState, c.snapshotLocked())
	c.mu.Unlock()

	stopRun(r)
	if h != nil {
		h.Release()
		slog.Info("session cleared", "session", c.id, "handle", h.ID)
	}
}

// Close clears the session and rejects further selections and analyses.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	r, h := c.resetLocked()
	c.mu.Unlock()

	stopRun(r)
	if h != nil {
		h.Release()
	}
}

func (c *Controller) resetLocked() (*run, *media.Handle) {
	r, h := c.run, c.handle
	c.run = nil
	c.gen++
	c.handle = nil
	c.preview = ""
	c.noPrev = false
	c.result = nil
	c.lastErr = ""
	c.progress = idleProgress()
	c.state = model.StateIdle
	if r != nil {
		r.cancel()
	}
	return r, h
}

// stopRun waits for the run's animation goroutine. It must be called
// without c.mu held, since ticks take the lock.
func stopRun(r *run) {
	if r == nil {
		return
	}
	r.cancel()
	r.presenter.Stop()
}

// Analyze starts the analyzer and the progress animation together. The
// session moves to ResultShown only after both have finished.
func (c *Controller) Analyze() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state == model.StateAnalyzing {
		return ErrAnalysisInFlight
	}
	if c.handle == nil {
		return ErrNoMedia
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	p := progress.New(c.deps.Progress)

	done, err := p.Start(ctx, func(s progress.Snapshot) { c.onTick(gen, s) })
	if err != nil {
		cancel()
		return fmt.Errorf("start progress: %w", err)
	}

	c.run = &run{gen: gen, cancel: cancel, presenter: p}
	c.state = model.StateAnalyzing
	c.result = nil
	c.lastErr = ""
	c.progress = p.Snapshot()
	c.emitLocked(EventState, c.snapshotLocked())

	go c.execute(ctx, gen, c.handle, done)

	slog.Info("analysis started", "session", c.id, "handle", c.handle.ID, "run", gen)
	return nil
}

func (c *Controller) execute(ctx context.Context, gen uint64, h *media.Handle, done <-chan struct{}) {
	res, err := c.deps.Analyzer.Analyze(ctx, h)
	if err != nil {
		c.fail(gen, err)
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	c.complete(gen, res)
}

func (c *Controller) onTick(gen uint64, s progress.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state != model.StateAnalyzing {
		return
	}
	c.progress = s
	c.emitLocked(EventProgress, s)
}

func (c *Controller) complete(gen uint64, res *model.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state != model.StateAnalyzing {
		return
	}
	r := c.run
	c.run = nil
	r.cancel()

	c.state = model.StateResultShown
	c.result = res
	c.progress = r.presenter.Snapshot()

	snap := c.snapshotLocked()
	c.emitLocked(EventResult, snap)
	c.emitLocked(EventState, snap)

	slog.Info("analysis complete", "session", c.id, "run", gen, "real", res.IsReal, "confidence", res.Confidence)
}

func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen || c.state != model.StateAnalyzing {
		c.mu.Unlock()
		return
	}
	r := c.run
	c.run = nil
	c.state = model.StateFileSelected
	c.lastErr = FailureMessage
	c.progress = idleProgress()
	c.emitLocked(EventError, map[string]string{"message": FailureMessage})
	c.emitLocked(EventState, c.snapshotLocked())
	c.mu.Unlock()

	stopRun(r)
	slog.Warn("analysis failed", "session", c.id, "run", gen, "error", err)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:       c.id,
		State:    c.state,
		Progress: c.progress,
		Error:    c.lastErr,
	}
	if c.handle != nil {
		info := c.handle.Info(c.preview)
		info.PreviewUnavailable = c.noPrev
		s.Media = &info
	}
	if c.state == model.StateResultShown && c.result != nil {
		res := *c.result
		res.DetectedArtifacts = append([]string{}, c.result.DetectedArtifacts...)
		s.Result = &res
		rep := report.Build(&res, c.preview, c.handle.Kind)
		s.Report = &rep
	}
	return s
}

func (c *Controller) emitLocked(t EventType, data any) {
	if c.deps.Listener == nil {
		return
	}
	c.deps.Listener(Event{Type: t, Data: data})
}
