package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbolis/survey-builder/model"
	"github.com/stretchr/testify/assert"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(0.001, 2)(http.HandlerFunc(ok))

	hit := func(peer, forwarded string) int {
		r := httptest.NewRequest("POST", "/", nil)
		r.RemoteAddr = peer + ":40000"
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("203.0.113.1", ""))
	assert.Equal(t, http.StatusNoContent, hit("203.0.113.1", ""))
	assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.1", ""))
	assert.Equal(t, http.StatusNoContent, hit("203.0.113.2", ""))

	t.Run("forwarded header does not reset the budget", func(t *testing.T) {
		assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.1", "198.51.100.7"))
		assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.1", "198.51.100.8"))
	})
}

func TestStaffRequiresToken(t *testing.T) {
	h := Staff("secret")(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	var seen bool
	h := OptionalAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, seen)
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(httptest.NewRequest("GET", "/", nil).Context(), model.Actor{ID: 4, Role: model.RoleEditor})
	actor, found := Actor(ctx)
	assert.True(t, found)
	assert.Equal(t, int64(4), actor.ID)
}

func TestCookieAuthWithoutCookiesFallsThrough(t *testing.T) {
	h := CookieAuth(nil, "secret")(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/export", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
