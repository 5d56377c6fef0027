package messaging

import (
	"regexp"
	"strings"
)

const whatsappPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// UserIDFromSender turns a channel sender ("whatsapp:+55 32 99141-3852",
// "5532991413852") into the session key. The same phone maps to the same
// key on every channel. Senders without digits are kept verbatim.
func UserIDFromSender(sender string) string {
	sender = strings.TrimSpace(sender)
	if len(sender) >= len(whatsappPrefix) && strings.EqualFold(sender[:len(whatsappPrefix)], whatsappPrefix) {
		sender = sender[len(whatsappPrefix):]
	}
	if e164 := NormalizeE164(sender); e164 != "" {
		return e164
	}
	return sender
}

func sanitizePhone(value string) string {
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}
