package media

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/YannKr/deepguard/internal/model"
)

// Input accepts selections and owns the handles it produced.
type Input struct {
	Dir      string
	MaxBytes int64
	Previews *Previews

	// InlineMax caps the images embedded as data URLs. Zero means no cap.
	InlineMax int64

	mu   sync.Mutex
	live map[string]*Handle
}

func NewInput(dir string, maxBytes int64) (*Input, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Input{
		Dir:      dir,
		MaxBytes: maxBytes,
		Previews: NewPreviews(),
		live:     make(map[string]*Handle),
	}, nil
}

// Select validates f, stores its bytes and starts preview generation.
// Unsupported kinds are rejected before anything is written.
func (in *Input) Select(ctx context.Context, f File) (*Handle, error) {
	kind := model.KindOf(f.ContentType())
	if kind == model.KindUnsupported {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaKind, f.ContentType())
	}
	if in.MaxBytes > 0 && f.Size() > in.MaxBytes {
		return nil, ErrTooLarge
	}

	id := uuid.New().String()
	dir := filepath.Join(in.Dir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}

	path := filepath.Join(dir, "input"+storedExt(f.Name()))
	size, sum, err := in.store(ctx, f, path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	previewCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		ID:          id,
		Name:        f.Name(),
		ContentType: f.ContentType(),
		Kind:        kind,
		Size:        size,
		SHA256:      sum,
		Path:        path,
		dir:         dir,
		input:       in,
		cancel:      cancel,
		previewDone: make(chan struct{}),
	}

	in.mu.Lock()
	in.live[id] = h
	in.mu.Unlock()

	// Both kinds are reachable by reference; images additionally get an
	// inline data URL as their preview.
	ref := in.Previews.Register(id, Stored{Path: path, Name: h.Name, ContentType: h.ContentType})
	switch kind {
	case model.KindImage:
		go h.buildInlinePreview(previewCtx)
	case model.KindVideo:
		h.preview = ref
		close(h.previewDone)
	}

	slog.Debug("media selected", "handle", id, "kind", kind, "size", size)
	return h, nil
}

func (in *Input) store(ctx context.Context, f File, path string) (int64, string, error) {
	src, err := f.Open()
	if err != nil {
		return 0, "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("create stored file: %w", err)
	}
	defer dst.Close()

	var r io.Reader = src
	if in.MaxBytes > 0 {
		r = io.LimitReader(src, in.MaxBytes+1)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, hash), r)
	if err != nil {
		return 0, "", fmt.Errorf("save upload: %w", err)
	}
	if in.MaxBytes > 0 && n > in.MaxBytes {
		return 0, "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

// Live reports whether a handle with this ID has not been released.
func (in *Input) Live(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.live[id]
	return ok
}

func (in *Input) forget(id string) {
	in.mu.Lock()
	delete(in.live, id)
	in.mu.Unlock()
}

// Handle is an accepted file plus its derived preview.
type Handle struct {
	ID          string
	Name        string
	ContentType string
	Kind        model.MediaKind
	Size        int64
	SHA256      string
	Path        string

	dir    string
	input  *Input
	cancel context.CancelFunc

	previewDone chan struct{}
	preview     string
	previewErr  error

	releaseOnce sync.Once
}

func (h *Handle) buildInlinePreview(ctx context.Context) {
	defer close(h.previewDone)

	if max := h.input.InlineMax; max > 0 && h.Size > max {
		h.previewErr = ErrPreviewTooLarge
		slog.Warn("preview generation skipped", "handle", h.ID, "size", h.Size, "max", max)
		return
	}

	data, err := os.ReadFile(h.Path)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		h.previewErr = fmt.Errorf("read preview: %w", err)
		slog.Warn("preview generation failed", "handle", h.ID, "error", err)
		return
	}
	h.preview = "data:" + h.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Preview waits for the preview reference. It returns "" when generation
// failed, the handle was released or ctx ended first.
func (h *Handle) Preview(ctx context.Context) string {
	select {
	case <-h.previewDone:
		return h.preview
	case <-ctx.Done():
		return ""
	}
}

// PreviewErr reports a preview generation failure once generation finished.
func (h *Handle) PreviewErr() error {
	select {
	case <-h.previewDone:
		return h.previewErr
	default:
		return nil
	}
}

// Release revokes the preview reference and removes the stored bytes. It is
// safe to call more than once.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		h.cancel()
		h.input.Previews.Revoke(h.ID)
		h.input.forget(h.ID)
		if err := os.RemoveAll(h.dir); err != nil {
			slog.Warn("release media", "handle", h.ID, "error", err)
		}
		slog.Debug("media released", "handle", h.ID)
	})
}

// Info returns the display view of the handle with the given preview.
func (h *Handle) Info(preview string) model.MediaInfo {
	return model.MediaInfo{
		ID:      h.ID,
		Name:    h.Name,
		Kind:    h.Kind,
		Size:    h.Size,
		SHA256:  h.SHA256,
		Preview: preview,
	}
}
