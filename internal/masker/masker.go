package masker

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Client calls the DLP masking service. Masking is best-effort: any failure
// keeps the original text and is only worth a warning.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

func New(endpoint string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
	}
}

func (c *Client) Mask(ctx context.Context, text string) string {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		log.Printf("dlp request encode failed: %v", err)
		return text
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		log.Printf("dlp request build failed: %v", err)
		return text
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("dlp service unreachable: %v", err)
		return text
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("dlp service returned %s", resp.Status)
		return text
	}

	var envelope struct {
		Data struct {
			MaskedText string `json:"masked_text"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Printf("dlp response decode failed: %v", err)
		return text
	}

	if envelope.Data.MaskedText == "" {
		return text
	}

	return envelope.Data.MaskedText
}
