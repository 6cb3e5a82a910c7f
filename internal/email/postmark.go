package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

// PostmarkSender implements the Sender interface using Postmark API
type PostmarkSender struct {
	apiKey        string
	messageStream string
	baseURL       string
	client        *http.Client
}

type postmarkEmail struct {
	From          string           `json:"From"`
	To            string           `json:"To"`
	Subject       string           `json:"Subject"`
	HtmlBody      string           `json:"HtmlBody,omitempty"`
	TextBody      string           `json:"TextBody,omitempty"`
	Headers       []postmarkHeader `json:"Headers,omitempty"`
	MessageStream string           `json:"MessageStream,omitempty"`
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkResponse struct {
	To        string `json:"To"`
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// PostmarkOption configures a PostmarkSender.
type PostmarkOption func(*PostmarkSender)

// WithPostmarkBaseURL points the sender at another API host.
func WithPostmarkBaseURL(baseURL string) PostmarkOption {
	return func(p *PostmarkSender) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMessageStream sets the Postmark message stream, "outbound" by default.
func WithMessageStream(stream string) PostmarkOption {
	return func(p *PostmarkSender) {
		p.messageStream = stream
	}
}

// NewPostmarkSender creates a new Postmark email sender
func NewPostmarkSender(apiKey string, opts ...PostmarkOption) *PostmarkSender {
	p := &PostmarkSender{
		apiKey:        apiKey,
		messageStream: "outbound",
		baseURL:       postmarkBaseURL,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send sends an email via Postmark
func (p *PostmarkSender) Send(ctx context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", ErrNoRecipient
	}

	payload := postmarkEmail{
		From:          email.From,
		To:            strings.Join(email.To, ","),
		Subject:       email.Subject,
		HtmlBody:      email.HTMLBody,
		TextBody:      email.TextBody,
		MessageStream: p.messageStream,
	}

	if len(email.Headers) > 0 {
		headers := make([]postmarkHeader, 0, len(email.Headers))
		for name, value := range email.Headers {
			headers = append(headers, postmarkHeader{Name: name, Value: value})
		}
		payload.Headers = headers
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result postmarkResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Message != "" {
			return "", fmt.Errorf("%w: postmark error %d: %s", ErrSendFailed, result.ErrorCode, result.Message)
		}
		return "", fmt.Errorf("%w: postmark API status %d: %s", ErrSendFailed, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.ErrorCode != 0 {
		return "", fmt.Errorf("%w: postmark error %d: %s", ErrSendFailed, result.ErrorCode, result.Message)
	}

	return result.MessageID, nil
}
