package attestation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/educhain/internal/netx"
)

type attestRequest struct {
	Digest  string `json:"digest"`
	Subject string `json:"subject"`
}

type attestResponse struct {
	Hash string `json:"hash"`
}

type verifyRequest struct {
	Hash   string `json:"hash"`
	Digest string `json:"digest"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Client talks to a ledger service over JSON:
//
//	POST {base}/attestations         {digest, subject} -> {hash}
//	POST {base}/attestations/verify  {hash, digest}    -> {valid}
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{httpClient: &http.Client{}, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Attest(ctx context.Context, digest, subject string) (string, error) {
	var resp attestResponse
	err := netx.PostJSON(ctx, c.httpClient, c.baseURL+"/attestations", nil, attestRequest{Digest: digest, Subject: subject}, &resp)
	if err != nil {
		return "", fmt.Errorf("attest: %w", err)
	}
	if resp.Hash == "" {
		return "", errors.New("attest: ledger returned an empty hash")
	}
	return resp.Hash, nil
}

func (c *Client) Verify(ctx context.Context, hash, digest string) (bool, error) {
	var resp verifyResponse
	err := netx.PostJSON(ctx, c.httpClient, c.baseURL+"/attestations/verify", nil, verifyRequest{Hash: hash, Digest: digest}, &resp)
	if err != nil {
		return false, fmt.Errorf("verify attestation: %w", err)
	}
	return resp.Valid, nil
}
