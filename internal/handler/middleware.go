package handler

import (
	"net/http"

	"github.com/gorilla/csrf"
)

// limitUploads caps POST /media bodies before the CSRF check parses them.
// Bodies that declare an oversized length are rejected without reading.
func (h *Handler) limitUploads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/media" {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > h.uploadLimit() {
			if wantsJSON(r) {
				jsonError(w, h.tooLargeMessage(), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, h.tooLargeMessage(), http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit())
		next.ServeHTTP(w, r)
	})
}

// plaintext tells the CSRF check that the site is served over http, which
// relaxes its Referer requirement.
func plaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

// noStore keeps visitor-specific pages and JSON out of shared caches.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
