package visitor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func echoID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(IDFromContext(r.Context())))
	})
}

func TestMiddlewareIssuesCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	Middleware(secret, false)(echoID()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	id := rec.Body.String()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, ok := FromRequest(req, secret)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestMiddlewareKeepsValidCookie(t *testing.T) {
	id := uuid.New().String()
	first := httptest.NewRecorder()
	SetCookie(first, id, secret, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(first.Result().Cookies()[0])
	rec := httptest.NewRecorder()
	Middleware(secret, false)(echoID()).ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "no new cookie for a known visitor")
}

func TestFromRequestRejectsForgery(t *testing.T) {
	id := uuid.New().String()
	tests := map[string]string{
		"unsigned":     id,
		"wrong secret": id + "." + sign(id, "other"),
		"not a uuid":   "admin." + sign("admin", secret),
		"empty":        "",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
			_, ok := FromRequest(req, secret)
			assert.False(t, ok)
		})
	}
}
