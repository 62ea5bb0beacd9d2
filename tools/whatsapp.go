package tools

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

const DefaultProviderTimeout = 30 * time.Second

// ProviderError is a non-2xx answer from the messaging provider. Body is kept verbatim.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d body=%s", e.StatusCode, e.Body)
}

// WhatsAppClient is a thin client for the tenant's messaging provider instance.
type WhatsAppClient struct {
	BaseURL    string
	InstanceID string
	Token      string
	HTTPClient *http.Client
}

type sendTextReq struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c WhatsAppClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultProviderTimeout}
}

// SendText posts one text message. Any 2xx is success.
func (c WhatsAppClient) SendText(ctx context.Context, phone string, message string) error {
	to, err := NormalizeWhatsAppTo(phone)
	if err != nil {
		return err
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return fmt.Errorf("provider base url not set")
	}
	url := fmt.Sprintf("%s/message/send/%s", base, strings.TrimSpace(c.InstanceID))

	b, _ := json.Marshal(sendTextReq{Phone: to, Message: message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.Token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
