// Package visitor identifies anonymous browsers with a signed cookie so each
// one gets its own analysis session.
package visitor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "deepguard_visitor"
	MaxAge     = 24 * time.Hour
)

type contextKey string

const idKey contextKey = "visitor_id"

func SetCookie(w http.ResponseWriter, id, secret string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id + "." + sign(id, secret),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(MaxAge.Seconds()),
	})
}

// FromRequest returns the visitor ID if the cookie is present and its
// signature checks out.
func FromRequest(r *http.Request, secret string) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return "", false
	}
	if !hmac.Equal([]byte(sign(id, secret)), []byte(sig)) {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Middleware puts the visitor ID into the request context, issuing a new
// cookie when the request carries none or a forged one.
func Middleware(secret string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromRequest(r, secret)
			if !ok {
				id = uuid.New().String()
				SetCookie(w, id, secret, secure)
			}
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

func IDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(idKey).(string)
	return v
}

func sign(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
