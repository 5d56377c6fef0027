package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v20.0"
	defaultHTTPTimeout  = 10 * time.Second
	// MaxMetaChunk is the longest text sent in one Cloud API message.
	MaxMetaChunk = 900
)

// GraphClient sends WhatsApp text messages through the Meta Cloud API.
type GraphClient struct {
	token         string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// NewGraphClient returns nil when token or phone number id is missing.
func NewGraphClient(token, phoneNumberID, graphAPIBase string) *GraphClient {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(phoneNumberID) == "" {
		return nil
	}
	if graphAPIBase == "" {
		graphAPIBase = defaultGraphAPIBase
	}
	return &GraphClient{
		token:         token,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  strings.TrimRight(graphAPIBase, "/"),
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type graphTextMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             graphText `json:"text"`
}

type graphText struct {
	Body string `json:"body"`
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers text to the recipient, split into chunks of at most MaxMetaChunk runes.
func (c *GraphClient) SendText(ctx context.Context, to, text string) error {
	for _, chunk := range ChunkText(text, MaxMetaChunk) {
		if err := c.send(ctx, graphTextMessage{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             graphText{Body: chunk},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *GraphClient) send(ctx context.Context, msg graphTextMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messaging: marshal graph message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: create graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: graph send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr graphError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("messaging: graph API error %d: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("messaging: graph unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// ChunkText splits text into pieces of at most size runes without breaking UTF-8.
func ChunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
