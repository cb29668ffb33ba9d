package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YannKr/deepguard/internal/model"
)

func newTestInput(t *testing.T, maxBytes int64) *Input {
	t.Helper()
	in, err := NewInput(filepath.Join(t.TempDir(), "uploads"), maxBytes)
	require.NoError(t, err)
	return in
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSelectRejectsUnsupported(t *testing.T) {
	in := newTestInput(t, 0)

	for _, ct := range []string{"application/pdf", "text/plain", "", "audio/mpeg"} {
		h, err := in.Select(context.Background(), FromBytes("doc.bin", ct, []byte("x")))
		assert.Nil(t, h)
		assert.True(t, errors.Is(err, ErrUnsupportedMediaKind), "content type %q", ct)
	}

	entries, err := os.ReadDir(in.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected selections must not write anything")
}

func TestSelectImageProducesInlinePreview(t *testing.T) {
	in := newTestInput(t, 0)
	data := []byte("\x89PNG fake pixels")

	h, err := in.Select(context.Background(), FromBytes("portrait.png", "image/png", data))
	require.NoError(t, err)
	defer h.Release()

	assert.Equal(t, model.KindImage, h.Kind)
	assert.Equal(t, int64(len(data)), h.Size)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), h.SHA256)
	assert.Equal(t, ".png", filepath.Ext(h.Path))

	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	assert.Equal(t, want, h.Preview(waitCtx(t)))
	assert.NoError(t, h.PreviewErr())
	assert.True(t, in.Live(h.ID))
}

func TestInlinePreviewRespectsLimit(t *testing.T) {
	in := newTestInput(t, 0)
	in.InlineMax = 4

	h, err := in.Select(context.Background(), FromBytes("portrait.png", "image/png", []byte("\x89PNG fake pixels")))
	require.NoError(t, err)
	defer h.Release()

	assert.Equal(t, "", h.Preview(waitCtx(t)))
	assert.ErrorIs(t, h.PreviewErr(), ErrPreviewTooLarge)
	assert.True(t, in.Live(h.ID), "the handle stays usable without a preview")
}

func TestSelectVideoRegistersTransientReference(t *testing.T) {
	in := newTestInput(t, 0)

	h, err := in.Select(context.Background(), FromBytes("clip.mp4", "video/mp4", []byte("mp4 bytes")))
	require.NoError(t, err)

	assert.Equal(t, model.KindVideo, h.Kind)
	assert.Equal(t, PreviewPath+h.ID, h.Preview(waitCtx(t)))

	stored, err := in.Previews.Lookup(h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.Path, stored.Path)
	assert.Equal(t, "video/mp4", stored.ContentType)

	h.Release()

	_, err = in.Previews.Lookup(h.ID)
	assert.ErrorIs(t, err, ErrPreviewRevoked)
	assert.Equal(t, 0, in.Previews.Len())
	assert.False(t, in.Live(h.ID))
	_, statErr := os.Stat(h.Path)
	assert.True(t, os.IsNotExist(statErr), "stored bytes should be removed")
}

func TestReleaseIsIdempotent(t *testing.T) {
	in := newTestInput(t, 0)
	h, err := in.Select(context.Background(), FromBytes("a.jpg", "image/jpeg", []byte("jpg")))
	require.NoError(t, err)

	h.Release()
	assert.NotPanics(t, h.Release)
}

func TestSelectEnforcesMaxBytes(t *testing.T) {
	in := newTestInput(t, 8)

	_, err := in.Select(context.Background(), FromBytes("big.jpg", "image/jpeg", bytes.Repeat([]byte("a"), 9)))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(in.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type lyingFile struct {
	File
}

func (lyingFile) Size() int64 { return 1 }

func TestSelectEnforcesMaxBytesWhenSizeUnderreported(t *testing.T) {
	in := newTestInput(t, 4)

	f := lyingFile{FromBytes("big.mp4", "video/mp4", []byte("0123456789"))}
	_, err := in.Select(context.Background(), f)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPreviewFailureKeepsHandleUsable(t *testing.T) {
	in := newTestInput(t, 0)

	// The stored file vanished before the preview read.
	broken := &Handle{
		ID:          "broken",
		ContentType: "image/jpeg",
		Kind:        model.KindImage,
		Path:        filepath.Join(t.TempDir(), "missing.jpg"),
		input:       in,
		cancel:      func() {},
		previewDone: make(chan struct{}),
	}
	broken.buildInlinePreview(context.Background())

	assert.Equal(t, "", broken.Preview(waitCtx(t)))
	assert.Error(t, broken.PreviewErr())
}

func TestFromPathDetectsContentType(t *testing.T) {
	dir := t.TempDir()

	jpg := filepath.Join(dir, "portrait.jpg")
	require.NoError(t, os.WriteFile(jpg, []byte("jpg"), 0644))
	f, err := FromPath(jpg)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", f.ContentType())
	assert.Equal(t, "portrait.jpg", f.Name())
	assert.Equal(t, int64(3), f.Size())

	noExt := filepath.Join(dir, "notes")
	require.NoError(t, os.WriteFile(noExt, []byte("plain text here"), 0644))
	f, err = FromPath(noExt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.ContentType(), "text/plain"))

	_, err = FromPath(dir)
	assert.Error(t, err)
}

func TestFirstFile(t *testing.T) {
	assert.Nil(t, FirstFile(nil))

	a := &multipart.FileHeader{Filename: "a.jpg"}
	b := &multipart.FileHeader{Filename: "b.jpg"}
	assert.Same(t, a, FirstFile([]*multipart.FileHeader{a, b}))
}

func TestFromMultipart(t *testing.T) {
	fh := &multipart.FileHeader{
		Filename: "../../etc/clip.mp4",
		Header:   textproto.MIMEHeader{"Content-Type": {"video/mp4"}},
		Size:     42,
	}
	f := FromMultipart(fh)
	assert.Equal(t, "clip.mp4", f.Name())
	assert.Equal(t, "video/mp4", f.ContentType())
	assert.Equal(t, int64(42), f.Size())
}

func TestStoredExt(t *testing.T) {
	assert.Equal(t, ".jpg", storedExt("A.JPG"))
	assert.Equal(t, ".mp4", storedExt("clip.mp4"))
	assert.Equal(t, "", storedExt("noext"))
	assert.Equal(t, "", storedExt("weird.j$g"))
	assert.Equal(t, "", storedExt("long.abcdefghij"))
}
