package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Cleaner removes stored uploads that outlived TTL without being released,
// for example after a crash or a session that was never cleared. Live
// reports whether a handle is still owned by a session; those are kept.
type Cleaner struct {
	Dir      string
	TTL      time.Duration
	Interval time.Duration
	Live     func(id string) bool

	cancel context.CancelFunc
	done   chan struct{}
}

func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
	slog.Info("cleanup scheduler started", "interval", c.Interval, "ttl", c.TTL)
}

func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	slog.Info("cleanup scheduler stopped")
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)

	c.RunOnce(time.Now())

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.RunOnce(now)
		}
	}
}

// RunOnce removes every upload directory last modified before now-TTL that
// no live handle owns. It returns the number removed.
func (c *Cleaner) RunOnce(now time.Time) int {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		slog.Error("cleanup: read upload dir", "dir", c.Dir, "error", err)
		return 0
	}

	cutoff := now.Add(-c.TTL)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if c.Live != nil && c.Live(id) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		dir := filepath.Join(c.Dir, id)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("cleanup: remove upload dir", "dir", dir, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("cleanup: removed stale uploads", "count", removed)
	}
	return removed
}
