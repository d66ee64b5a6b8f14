package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LogSender writes messages to the log instead of delivering them.
// Used outside production.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("message_id", msg.ID).
		Str("phone", msg.Phone).
		Str("template", string(msg.Key)).
		Str("text", msg.Text).
		Msg("[DEV] WhatsApp message")
	return nil
}

// WhatsAppSender posts text messages to the WhatsApp Cloud API.
type WhatsAppSender struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// NewWhatsAppSender creates a Cloud API sender.
func NewWhatsAppSender(baseURL, accessToken, phoneNumberID string, timeout time.Duration) *WhatsAppSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhatsAppSender{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if s.accessToken == "" || s.phoneNumberID == "" {
		return fmt.Errorf("whatsapp sender not configured")
	}
	body, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.Phone,
		Type:             "text",
		Text:             whatsAppText{Body: msg.Text},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
