package messaging

import (
	"encoding/xml"
	"net/http"
)

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// RenderTwiML encodes the reply as a TwiML document. An empty reply yields
// an empty <Response/> so Twilio sends nothing.
func RenderTwiML(reply string) ([]byte, error) {
	resp := twimlResponse{}
	if reply != "" {
		resp.Messages = []string{reply}
	}
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func writeTwiML(w http.ResponseWriter, reply string) {
	body, err := RenderTwiML(reply)
	if err != nil {
		body = []byte(xml.Header + "<Response></Response>")
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
