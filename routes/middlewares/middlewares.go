package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/model"
)

type actorKey struct{}

// Actor returns the authenticated account of the request, if any.
func Actor(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Staff middleware to check for a bearer token of a non-respondent account.
func Staff(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), staff).Handler(next)
	}
}

func staff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		actor, ok := httpx.ActorFromClaims(claims)
		if !ok || !actor.Role.Staff() {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.staff")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// OptionalAuth identifies the caller when a bearer token is sent, and lets
// anonymous requests through.
func OptionalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authorized := chi.Chain(oauth.Authorize(secret, nil), identify).Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			authorized.ServeHTTP(w, r)
		})
	}
}

func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		if actor, ok := httpx.ActorFromClaims(claims); ok {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// CookieAuth lets browsers authenticate GET requests, such as export
// downloads, with the access/refresh cookie pair. Requests without cookies
// are passed on untouched.
func CookieAuth(bearerServer *oauth.BearerServer, secret string) func(http.Handler) http.Handler {
	// the token is checked on the side so that the response itself is never buffered
	validToken := func(r *http.Request) bool {
		valid := false
		probe := oauth.Authorize(secret, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			valid = true
		}))
		probe.ServeHTTP(&httpx.ResponseBuffer{}, r)
		return valid
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "GET" || r.Header.Get("authorization") != "" {
				h.ServeHTTP(w, r)
				return
			}

			if token, err := r.Cookie(httpx.AccessCookie); err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				if validToken(r) {
					h.ServeHTTP(w, r)
					return
				}
				r.Header.Del("authorization")
			}

			// access token missing or expired
			refreshToken, err := r.Cookie(httpx.RefreshCookie)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}

			tokens, err := httpx.ExchangeTokens(r.Context(), bearerServer, httpx.RefreshGrant(refreshToken.Value))
			var refused *httpx.TokenError
			switch {
			case errors.As(err, &refused):
				httpx.ClearAuthCookies(w)
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.cookie.refresh")
				return
			case err != nil:
				httpx.LogInternalError(w, "auth.cookie.refresh", err)
				return
			}

			httpx.SetAuthCookies(w, tokens)
			r.Header.Set("authorization", "Bearer "+tokens.AccessToken)
			h.ServeHTTP(w, r)
		})
	}
}
