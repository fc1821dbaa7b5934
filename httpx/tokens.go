package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/oauth"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Tokens is the reply of the bearer server's token endpoint.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// TokenError is a grant the bearer server turned down.
type TokenError struct {
	Status int
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token grant refused with status %d", e.Status)
}

// ExchangeTokens runs a grant against the bearer server in process.
// oauth.BearerServer only takes form-encoded requests.
func ExchangeTokens(ctx context.Context, bs *oauth.BearerServer, grant url.Values) (*Tokens, error) {
	body := grant.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", "/", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(body)))

	var resp ResponseBuffer
	bs.UserCredentials(&resp, req)
	if resp.Status() != http.StatusOK {
		return nil, &TokenError{Status: resp.Status()}
	}

	var tokens Tokens
	if err := json.Unmarshal(resp.Body.Bytes(), &tokens); err != nil {
		return nil, fmt.Errorf("bad token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("bad token response: no access token")
	}
	return &tokens, nil
}

func PasswordGrant(username, password string) url.Values {
	return url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
}

func RefreshGrant(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
}

// SetAuthCookies hands the token pair to a browser.
func SetAuthCookies(w http.ResponseWriter, tokens *Tokens) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     AccessCookie,
		Value:    tokens.AccessToken,
		MaxAge:   int(tokens.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     RefreshCookie,
		Value:    tokens.RefreshToken,
		MaxAge:   int(refreshTokenTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Path: "/", Name: name, MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	}
}
