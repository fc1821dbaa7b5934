// Package captcha checks the human-verification answers sent with public
// submissions. Challenge generation belongs to the page that renders the
// form; this side only asks the provider whether an answer is valid.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalid = errors.New("captcha verification failed")

type Verifier interface {
	Verify(ctx context.Context, response, remoteIP string) error
}

// SiteVerify posts answers to a siteverify-style endpoint, the protocol
// shared by reCAPTCHA, hCaptcha and Turnstile.
type SiteVerify struct {
	url        string
	secret     string
	httpClient *http.Client
}

func NewSiteVerify(verifyURL, secret string) *SiteVerify {
	return &SiteVerify{
		url:        verifyURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *SiteVerify) Verify(ctx context.Context, response, remoteIP string) error {
	if strings.TrimSpace(response) == "" {
		return ErrInvalid
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("captcha request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha provider error (%d): %s", resp.StatusCode, string(body))
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(out.ErrorCodes, ","))
	}
	return nil
}

// Disabled accepts every answer. It is used when no provider is configured.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) error {
	return nil
}

// New returns a SiteVerify for the given endpoint, or Disabled when either
// the endpoint or the secret is missing.
func New(verifyURL, secret string) Verifier {
	if verifyURL == "" || secret == "" {
		return Disabled{}
	}
	return NewSiteVerify(verifyURL, secret)
}
