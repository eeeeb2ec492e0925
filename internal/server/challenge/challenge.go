// Package challenge validates human-verification tokens against a
// siteverify-style provider.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/educhain/internal/netx"
)

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Client posts tokens to the provider's verify endpoint.
type Client struct {
	httpClient *http.Client
	verifyURL  string
	secret     string
	timeout    time.Duration
}

func NewClient(verifyURL, secret string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		verifyURL:  verifyURL,
		secret:     secret,
		timeout:    timeout,
	}
}

// Verify reports whether the provider accepted token. Transport failures are
// returned as errors; callers treat them as a rejection.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	var resp verifyResponse
	if err := netx.PostForm(ctx, c.httpClient, c.verifyURL, form, &resp); err != nil {
		return false, fmt.Errorf("challenge verify: %w", err)
	}
	if !resp.Success && len(resp.ErrorCodes) > 0 {
		return false, &RejectedError{Codes: resp.ErrorCodes}
	}
	return resp.Success, nil
}

// RejectedError carries the provider's error codes for logging.
type RejectedError struct {
	Codes []string
}

func (e *RejectedError) Error() string {
	return "challenge rejected: " + strings.Join(e.Codes, ",")
}

// IsRejected reports whether err is a provider rejection rather than a
// transport failure.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

// AcceptAll admits any non-empty token. Used when no provider secret is
// configured.
type AcceptAll struct{}

func (AcceptAll) Verify(_ context.Context, token, _ string) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}
