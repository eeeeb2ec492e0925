package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/educhain/internal/netx"
	"github.com/dmitrijs2005/educhain/internal/server/models"
)

const promptTemplate = `You are a document verification AI. Analyze this document and determine if it is a valid %s.

Look for these indicators:
- For Transcript: grades, course names, GPA, student name, institution name, academic terms
- For Certificate: official seals, signatures, certification authority, date of issuance
- For Degree or Diploma: degree title, institution name, graduation date, official seals, signatures
- For ID: photo, ID number, institution logo, expiration date, name

Respond ONLY with this JSON format (no extra text):
{
  "documentType": "<detected type: General/Transcript/Certificate/Degree/Diploma/ID>",
  "isValid": <true/false>,
  "confidence": <0.0-1.0>,
  "reason": "<brief explanation>"
}`

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type verdict struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// Gemini talks to a generateContent endpoint.
type Gemini struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// NewGemini builds a client. Calls are bounded by the caller's context.
func NewGemini(url, apiKey string) *Gemini {
	return &Gemini{httpClient: &http.Client{}, url: url, apiKey: apiKey}
}

// Classify sends the document and the declared type and parses the model's verdict.
func (g *Gemini) Classify(ctx context.Context, req Request) (models.Classification, error) {
	body := generateRequest{Contents: []content{{Parts: []part{
		{Text: fmt.Sprintf(promptTemplate, req.DeclaredType)},
		{InlineData: &inlineData{MimeType: MimeType(req.Filename), Data: req.Content}},
	}}}}

	var resp generateResponse
	err := netx.PostJSON(ctx, g.httpClient, g.url, map[string]string{"x-goog-api-key": g.apiKey}, body, &resp)
	if err != nil {
		return models.Classification{}, fmt.Errorf("oracle request: %w", err)
	}

	return parseResponse(resp)
}

var errEmptyReply = errors.New("oracle returned no candidates")

func parseResponse(resp generateResponse) (models.Classification, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.Classification{}, errEmptyReply
	}

	text := stripFences(resp.Candidates[0].Content.Parts[0].Text)

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return models.Classification{}, fmt.Errorf("oracle verdict: %w", err)
	}

	if v.Confidence < 0 || v.Confidence > 1 {
		return models.Classification{}, fmt.Errorf("oracle verdict: confidence %v outside [0,1]", v.Confidence)
	}

	reason := v.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	return models.Classification{
		DetectedType: normalizeType(v.DocumentType),
		Confidence:   v.Confidence,
		Reason:       reason,
	}, nil
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripFences removes a markdown code fence around the model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
