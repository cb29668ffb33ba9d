package sse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesTopicOnly(t *testing.T) {
	h := New()
	a, unsubA := h.Subscribe("visitor:a")
	defer unsubA()
	b, unsubB := h.Subscribe("visitor:b")
	defer unsubB()

	h.Publish("visitor:a", Event{Type: "state", Data: `{"state":"idle"}`})

	select {
	case evt := <-a:
		assert.Equal(t, "state", evt.Type)
	default:
		t.Fatal("subscriber a got nothing")
	}
	select {
	case evt := <-b:
		t.Fatalf("subscriber b got %v", evt)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	ch, unsub := h.Subscribe("t")
	assert.Equal(t, 1, h.Subscribers("t"))

	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("t"))

	assert.NotPanics(t, func() { h.Publish("t", Event{Type: "state"}) })
}

func TestSlowClientIsSkipped(t *testing.T) {
	h := New()
	ch, unsub := h.Subscribe("t")
	defer unsub()

	for i := 0; i < 200; i++ {
		h.Publish("t", Event{Type: "progress"})
	}
	assert.Len(t, ch, cap(ch))
}

func TestEventFraming(t *testing.T) {
	evt, err := NewEvent("progress", map[string]int{"percent": 42})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = evt.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "event: progress\ndata: {\"percent\":42}\n\n", buf.String())

	_, err = NewEvent("bad", func() {})
	assert.Error(t, err)
}
