package handler

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"github.com/YannKr/deepguard/internal/config"
	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/session"
	"github.com/YannKr/deepguard/internal/sse"
)

type Handler struct {
	Cfg       *config.Config
	Sessions  *session.Registry
	Input     *media.Input
	SSE       *sse.Hub
	templates map[string]*template.Template
}

func New(cfg *config.Config, templateFS fs.FS, sessions *session.Registry, input *media.Input, sseHub *sse.Hub) *Handler {
	funcMap := template.FuncMap{
		"formatMB": func(b int64) string {
			return fmt.Sprintf("%.2f MB", float64(b)/(1024*1024))
		},
		"maxMB": func(b int64) int64 {
			return b / (1024 * 1024)
		},
		"json": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			return template.JS(b), err
		},
		"safeURL": func(s string) template.URL {
			// previews are either data: URLs we built or /preview/ references
			if strings.HasPrefix(s, "data:image/") || strings.HasPrefix(s, "data:video/") || strings.HasPrefix(s, media.PreviewPath) {
				return template.URL(s)
			}
			return ""
		},
	}

	// Parse layout template as the base
	layoutTmpl := template.Must(
		template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "layout.html"),
	)

	// Build per-page template sets: clone layout + parse page
	templates := make(map[string]*template.Template)
	entries, err := fs.ReadDir(templateFS, ".")
	if err != nil {
		panic("read template dir: " + err.Error())
	}
	for _, e := range entries {
		name := e.Name()
		if name == "layout.html" || e.IsDir() {
			continue
		}
		t := template.Must(template.Must(layoutTmpl.Clone()).ParseFS(templateFS, name))
		templates[name] = t
	}

	return &Handler{
		Cfg:       cfg,
		Sessions:  sessions,
		Input:     input,
		SSE:       sseHub,
		templates: templates,
	}
}

type PageData struct {
	Title     string
	Error     string
	CSRFField template.HTML
	CSRFToken string
	Data      interface{}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, status int, data PageData) {
	t, ok := h.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.Error("render template", "name", name, "error", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func jsonOK(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
