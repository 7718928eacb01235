// Package gateway talks to the Gemini generateContent API.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-pro-latest"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// Image is an uploaded picture attached to a query.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Query is one user request. Text may be empty when Image is set.
type Query struct {
	Text  string
	Image *Image
}

// Error is returned for every failed Generate call. StatusCode is zero
// for transport and decoding failures.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("gateway: ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Options configure a GeminiClient.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration // 0 leaves the HTTP client without a timeout
	HTTPClient *http.Client
}

// GeminiClient sends educational prompts to Gemini.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(opts Options) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gateway: api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &GeminiClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		httpClient: opts.HTTPClient,
	}, nil
}

// Model reports the configured model name.
func (c *GeminiClient) Model() string { return c.model }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate returns the model's answer to q. There is no retry.
func (c *GeminiClient) Generate(ctx context.Context, q Query) (string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" && q.Image == nil {
		return "", &Error{Message: "empty query"}
	}

	user := content{Role: "user"}
	if q.Image != nil {
		user.Parts = append(user.Parts, part{Text: ImagePrompt(text)})
		user.Parts = append(user.Parts, part{InlineData: &inlineData{
			MIMEType: q.Image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(q.Image.Data),
		}})
	} else {
		user.Parts = append(user.Parts, part{Text: TextPrompt(text)})
	}

	payload, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: SystemPrompt}}},
		Contents:          []content{user},
	})
	if err != nil {
		return "", &Error{Message: "marshal request", Err: err}
	}

	url := c.baseURL + "/models/" + c.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: "parse response", Err: err}
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: "prompt blocked: " + gr.PromptFeedback.BlockReason}
	}

	var out strings.Builder
	if len(gr.Candidates) > 0 {
		for _, p := range gr.Candidates[0].Content.Parts {
			out.WriteString(p.Text)
		}
	}
	answer := strings.TrimSpace(out.String())
	if answer == "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: "empty response"}
	}
	return answer, nil
}
