package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YannKr/deepguard/internal/analyzer"
	"github.com/YannKr/deepguard/internal/media"
)

func newTestRegistry(t *testing.T, size int) (*Registry, *media.Input) {
	t.Helper()
	in, err := media.NewInput(filepath.Join(t.TempDir(), "uploads"), 0)
	require.NoError(t, err)

	reg, err := NewRegistry(size, func(id string) *Controller {
		return New(id, Deps{Input: in, Analyzer: analyzer.NewSimulated(0, 1), Progress: fastProgress})
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return reg, in
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg, _ := newTestRegistry(t, 4)

	a := reg.GetOrCreate("a")
	assert.Same(t, a, reg.GetOrCreate("a"))
	assert.Equal(t, "a", a.ID())
	assert.NotSame(t, a, reg.GetOrCreate("b"))
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryEvictionClosesController(t *testing.T) {
	reg, in := newTestRegistry(t, 1)

	a := reg.GetOrCreate("a")
	info, err := a.Select(context.Background(), mp4("clip.mp4"))
	require.NoError(t, err)

	reg.GetOrCreate("b")
	assert.Equal(t, 1, reg.Len())
	assert.False(t, in.Live(info.ID), "evicted session releases its media")

	_, err = a.Select(context.Background(), mp4("again.mp4"))
	assert.ErrorIs(t, err, ErrClosed)

	fresh := reg.GetOrCreate("a")
	assert.NotSame(t, a, fresh)
}

func TestRegistryCloseReleasesAll(t *testing.T) {
	reg, in := newTestRegistry(t, 8)

	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.GetOrCreate(id).Select(context.Background(), mp4(id+".mp4"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, in.Previews.Len())

	reg.Close()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, in.Previews.Len())
}

func TestNewRegistryRejectsBadSize(t *testing.T) {
	_, err := NewRegistry(0, nil)
	assert.Error(t, err)
}
