package routes

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/routes/middlewares"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Login trades basic auth credentials for a token pair, returned in the body
// and as cookies for browser downloads.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}
		issue(app, w, r, "login", httpx.PasswordGrant(user, pass))
	}
}

// Refresh takes the refresh token from an "Authorization: Refresh <token>"
// header, or else from the refresh cookie.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if match := reRefresh.FindStringSubmatch(r.Header.Get("authorization")); match != nil {
			token = match[1]
		} else if c, err := r.Cookie(httpx.RefreshCookie); err == nil {
			token = c.Value
		}
		if token == "" {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}
		issue(app, w, r, "refresh", httpx.RefreshGrant(token))
	}
}

func issue(app app.App, w http.ResponseWriter, r *http.Request, code string, grant url.Values) {
	tokens, err := httpx.ExchangeTokens(r.Context(), app.BearerServer, grant)
	var refused *httpx.TokenError
	switch {
	case errors.As(err, &refused):
		httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, code+".refused")
		return
	case err != nil:
		httpx.LogInternalError(w, code+".exchange", err)
		return
	}
	httpx.SetAuthCookies(w, tokens)
	render.JSON(w, r, tokens)
}

// Logout revokes the caller's refresh tokens and drops the auth cookies.
func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a, ok := middlewares.Actor(r.Context()); ok {
			if err := httpx.RevokeTokens(r.Context(), app.DB, a.Username); err != nil {
				httpx.LogInternalError(w, "db.revoke_tokens", err)
				return
			}
		}
		httpx.ClearAuthCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
