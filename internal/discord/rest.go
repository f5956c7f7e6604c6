package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const apiBaseURL = "https://discord.com/api/v10"

// Embed is the outbound embed shape for channel messages.
type Embed struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       int             `json:"color,omitempty"`
	Image       *EmbedImage     `json:"image,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

// RestClient posts messages back to channels with bot authorization and
// 429-aware retries.
type RestClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryCfg   RetryConfig
	logger     *slog.Logger
}

func NewRestClient(token string, logger *slog.Logger) *RestClient {
	return &RestClient{
		baseURL:    apiBaseURL,
		token:      token,
		httpClient: DiscordHTTPClient,
		retryCfg:   DefaultRetryConfig(),
		logger:     logger,
	}
}

// NewRestClientWithBaseURL exists for tests against a local server.
func NewRestClientWithBaseURL(token, baseURL string, logger *slog.Logger) *RestClient {
	c := NewRestClient(token, logger)
	c.baseURL = baseURL
	c.httpClient = &http.Client{Timeout: 10 * time.Second}
	return c
}

// SendText posts a plain-text message to a channel.
func (rc *RestClient) SendText(ctx context.Context, channelID, content string) error {
	return rc.createMessage(ctx, channelID, map[string]interface{}{
		"content": content,
	})
}

// SendEmbed posts a single embed to a channel.
func (rc *RestClient) SendEmbed(ctx context.Context, channelID string, embed Embed) error {
	return rc.createMessage(ctx, channelID, map[string]interface{}{
		"embeds": []Embed{embed},
	})
}

func (rc *RestClient) createMessage(ctx context.Context, channelID string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", rc.baseURL, channelID)

	var lastErr error
	for attempt := 0; attempt <= rc.retryCfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+rc.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := rc.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			time.Sleep(CalculateBackoff(rc.retryCfg, attempt, 0))
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			rc.logger.Warn("message_send_rate_limited",
				"channel_id", channelID,
				"retry_after", retryAfter.String(),
			)
			lastErr = fmt.Errorf("rate limited on channel %s", channelID)
			time.Sleep(CalculateBackoff(rc.retryCfg, attempt, retryAfter))
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("discord returned status %d", resp.StatusCode)
			time.Sleep(CalculateBackoff(rc.retryCfg, attempt, 0))
			continue
		default:
			// 4xx other than 429 will not succeed on retry.
			return fmt.Errorf("discord returned status %d: %s", resp.StatusCode, string(respBody))
		}
	}

	return fmt.Errorf("message send failed after %d attempts: %w", rc.retryCfg.MaxRetries+1, lastErr)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
