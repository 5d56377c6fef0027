package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature checks X-Twilio-Signature against the form posted to webhookURL.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload is the URL followed by every key+value, keys sorted.
func buildSignaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWhatsAppMessage is the subset of the Twilio WhatsApp webhook form we use.
type TwilioWhatsAppMessage struct {
	MessageSid  string
	From        string
	To          string
	Body        string
	ProfileName string
	NumMedia    string
}

// ParseTwilioWhatsApp reads the webhook form.
func ParseTwilioWhatsApp(r *http.Request) (*TwilioWhatsAppMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse twilio form: %w", err)
	}
	return &TwilioWhatsAppMessage{
		MessageSid:  strings.TrimSpace(r.FormValue("MessageSid")),
		From:        strings.TrimSpace(r.FormValue("From")),
		To:          strings.TrimSpace(r.FormValue("To")),
		Body:        r.FormValue("Body"),
		ProfileName: r.FormValue("ProfileName"),
		NumMedia:    r.FormValue("NumMedia"),
	}, nil
}
