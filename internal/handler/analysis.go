package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/model"
	"github.com/YannKr/deepguard/internal/report"
	"github.com/YannKr/deepguard/internal/session"
	"github.com/YannKr/deepguard/internal/visitor"
)

var (
	ImageFormats = []string{"JPG", "PNG", "WEBP"}
	VideoFormats = []string{"MP4", "AVI", "MOV"}
)

const unsupportedMessage = "Unsupported file type. Please select an image (JPG, PNG, WEBP) or video (MP4, AVI, MOV)."

type IndexData struct {
	Session        session.Snapshot
	ImageFormats   []string
	VideoFormats   []string
	MaxUploadBytes int64
}

// visitorSession looks up the visitor's controller. Only selecting a file
// creates one, so page views and streams never evict a live session.
func (h *Handler) visitorSession(r *http.Request) (*session.Controller, bool) {
	return h.Sessions.Get(visitor.IDFromContext(r.Context()))
}

func (h *Handler) visitorSnapshot(r *http.Request) session.Snapshot {
	if c, ok := h.visitorSession(r); ok {
		return c.Snapshot()
	}
	return session.IdleSnapshot(visitor.IDFromContext(r.Context()))
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, h.visitorSnapshot(r), "")
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, snap session.Snapshot, errMsg string) {
	if errMsg == "" {
		errMsg = snap.Error
	}
	h.render(w, r, "index.html", status, PageData{
		Title: "DeepGuard - Deepfake Detection",
		Error: errMsg,
		Data: IndexData{
			Session:        snap,
			ImageFormats:   ImageFormats,
			VideoFormats:   VideoFormats,
			MaxUploadBytes: h.Cfg.MaxUploadBytes,
		},
	})
}

// respond answers a successful form action: JSON for scripted clients, a
// redirect back to the page otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		jsonOK(w, publicSnapshot(h.visitorSnapshot(r)))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) {
		jsonError(w, msg, status)
		return
	}
	h.renderIndex(w, r, status, h.visitorSnapshot(r), msg)
}

// SelectMedia handles POST /media. Only the first file of the "file" field
// is considered.
func (h *Handler) SelectMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
			return
		}
		h.reject(w, r, http.StatusBadRequest, "Failed to parse upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	fh := media.FirstFile(r.MultipartForm.File["file"])
	if fh == nil {
		h.reject(w, r, http.StatusBadRequest, "No file selected.")
		return
	}
	if model.KindOf(fh.Header.Get("Content-Type")) == model.KindUnsupported {
		h.reject(w, r, http.StatusBadRequest, unsupportedMessage)
		return
	}

	c := h.Sessions.GetOrCreate(visitor.IDFromContext(r.Context()))
	if _, err := c.Select(r.Context(), media.FromMultipart(fh)); err != nil {
		status, msg := h.selectionError(err)
		if status == http.StatusInternalServerError {
			slog.Error("select media", "session", c.ID(), "error", err)
		}
		h.reject(w, r, status, msg)
		return
	}
	h.respond(w, r)
}

func (h *Handler) selectionError(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrUnsupportedMediaKind):
		return http.StatusBadRequest, unsupportedMessage
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, h.tooLargeMessage()
	case errors.Is(err, session.ErrAnalysisInFlight):
		return http.StatusConflict, "An analysis is already running."
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict, "Your session expired. Please reload the page."
	default:
		return http.StatusInternalServerError, "Could not store the file."
	}
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("File is larger than the %dMB limit.", h.Cfg.MaxUploadBytes/(1024*1024))
}

// uploadLimit leaves room for multipart framing and the CSRF field.
func (h *Handler) uploadLimit() int64 {
	return h.Cfg.MaxUploadBytes + 1<<20
}

func (h *Handler) ClearMedia(w http.ResponseWriter, r *http.Request) {
	if c, ok := h.visitorSession(r); ok {
		c.Clear()
	}
	h.respond(w, r)
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	c, ok := h.visitorSession(r)
	if !ok {
		h.reject(w, r, http.StatusBadRequest, "Select a file first.")
		return
	}

	if err := c.Analyze(); err != nil {
		switch {
		case errors.Is(err, session.ErrNoMedia):
			h.reject(w, r, http.StatusBadRequest, "Select a file first.")
		case errors.Is(err, session.ErrAnalysisInFlight):
			h.reject(w, r, http.StatusConflict, "An analysis is already running.")
		case errors.Is(err, session.ErrClosed):
			h.reject(w, r, http.StatusConflict, "Your session expired. Please reload the page.")
		default:
			slog.Error("start analysis", "session", c.ID(), "error", err)
			h.reject(w, r, http.StatusInternalServerError, "Could not start the analysis.")
		}
		return
	}
	h.respond(w, r)
}

// Preview serves the visitor's current media by reference. Range requests
// are honoured so videos can seek.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap := h.visitorSnapshot(r)
	if snap.Media == nil || snap.Media.ID != id {
		http.NotFound(w, r)
		return
	}
	stored, err := h.Input.Previews.Lookup(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(stored.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", stored.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	http.ServeContent(w, r, stored.Name, info.ModTime(), f)
}

func (h *Handler) APISession(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, publicSnapshot(h.visitorSnapshot(r)))
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{"status": "ok", "sessions": h.Sessions.Len()})
}

// publicSnapshot swaps inline data URLs for references so JSON payloads
// stay small.
func publicSnapshot(s session.Snapshot) session.Snapshot {
	if s.Media != nil {
		m := *s.Media
		m.Preview = publicPreview(m.ID, m.Preview)
		s.Media = &m
	}
	if s.Report != nil && s.Media != nil {
		s.Report = publicReport(s.Media.ID, s.Report)
	}
	return s
}

func publicReport(id string, rep *report.Report) *report.Report {
	cp := *rep
	cp.Preview = publicPreview(id, rep.Preview)
	return &cp
}

func publicPreview(id, preview string) string {
	if strings.HasPrefix(preview, "data:") {
		return media.PreviewPath + id
	}
	return preview
}
