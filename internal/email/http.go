package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"drugscreen/internal/services"
)

// HTTPTransport posts messages to {baseURL}/emails with bearer authentication.
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPTransport(baseURL, apiKey string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + "/emails",
		apiKey:   apiKey,
		client:   client,
	}
}

type sendRequest struct {
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

type attachmentPayload struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return services.Wrap(services.ErrValidation, "email", "send", "recipient is required", nil)
	}
	payload := sendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, attachmentPayload{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "email", "send", msg.To, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransport, "email", "send",
			fmt.Sprintf("mail api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
