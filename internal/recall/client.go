package recall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the provider's API root.
const DefaultBaseURL = "https://us-east-1.recall.ai"

// HTTPStatusError captures non-2xx provider responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("recall: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client talks to the external meeting-bot provider's REST API: it
// provisions bots into meetings, pulls them out, and reads their
// status. Transcript data never flows through here — the provider
// pushes it to our webhook endpoint.
type Client struct {
	baseURL    string
	apiToken   string
	botName    string
	webhookURL string
	secret     string

	httpClient *http.Client
	sleep      func(time.Duration)
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a provider client. webhookURL is where the provider
// delivers realtime events; the verification secret rides along as a
// query parameter, the way the provider's realtime endpoints expect.
func NewClient(apiToken, botName, webhookURL, secret string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiToken) == "" {
		return nil, errors.New("recall: api token must not be empty")
	}
	if strings.TrimSpace(botName) == "" {
		botName = "Scribe Notetaker"
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiToken:   apiToken,
		botName:    botName,
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createBotRequest struct {
	BotName         string          `json:"bot_name"`
	MeetingURL      string          `json:"meeting_url"`
	RecordingConfig recordingConfig `json:"recording_config"`
}

type recordingConfig struct {
	RealtimeEndpoints []realtimeEndpoint `json:"realtime_endpoints"`
	Transcript        transcriptConfig   `json:"transcript"`
}

type realtimeEndpoint struct {
	Type   string   `json:"type"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type transcriptConfig struct {
	Provider map[string]struct{} `json:"provider"`
}

type botResponse struct {
	ID            string `json:"id"`
	StatusChanges []struct {
		Code      string `json:"code"`
		CreatedAt string `json:"created_at"`
	} `json:"status_changes"`
}

// CreateBot asks the provider to join a bot into the meeting and
// returns the provider-assigned bot id. Not retried: a duplicate
// request would put a second bot in the call.
func (c *Client) CreateBot(ctx context.Context, meetingURL string) (string, error) {
	if strings.TrimSpace(meetingURL) == "" {
		return "", errors.New("recall: meeting url must not be empty")
	}

	reqBody := createBotRequest{
		BotName:    c.botName,
		MeetingURL: meetingURL,
		RecordingConfig: recordingConfig{
			RealtimeEndpoints: []realtimeEndpoint{
				{
					Type: "webhook",
					URL:  c.webhookURL + "?secret=" + url.QueryEscape(c.secret),
					Events: []string{
						"transcript.data",
						"transcript.partial_data",
						"bot.status_change",
					},
				},
			},
			Transcript: transcriptConfig{
				Provider: map[string]struct{}{"gladia_v2_streaming": {}},
			},
		},
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/v1/bot", reqBody)
	if err != nil {
		return "", fmt.Errorf("recall: create bot: %w", err)
	}

	var bot botResponse
	if err := json.Unmarshal(raw, &bot); err != nil {
		return "", fmt.Errorf("recall: decode create bot response: %w", err)
	}
	if bot.ID == "" {
		return "", errors.New("recall: create bot response carries no id")
	}
	return bot.ID, nil
}

// LeaveCall instructs the bot to exit its meeting. Retried once with
// backoff; the call is idempotent on the provider side.
func (c *Client) LeaveCall(ctx context.Context, botID string) error {
	_, err := c.doWithRetry(ctx, http.MethodPost, "/api/v1/bot/"+botID+"/leave_call", nil)
	if err != nil {
		return fmt.Errorf("recall: leave call for bot %s: %w", botID, err)
	}
	return nil
}

// BotStatus returns the provider's latest status code for the bot.
func (c *Client) BotStatus(ctx context.Context, botID string) (string, error) {
	raw, err := c.doWithRetry(ctx, http.MethodGet, "/api/v1/bot/"+botID, nil)
	if err != nil {
		return "", fmt.Errorf("recall: get bot %s: %w", botID, err)
	}

	var bot botResponse
	if err := json.Unmarshal(raw, &bot); err != nil {
		return "", fmt.Errorf("recall: decode bot response: %w", err)
	}
	if len(bot.StatusChanges) == 0 {
		return "unknown", nil
	}
	return bot.StatusChanges[len(bot.StatusChanges)-1].Code, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, payload any) ([]byte, error) {
	raw, err := c.do(ctx, method, path, payload)
	if err == nil {
		return raw, nil
	}

	c.sleep(1 * time.Second)
	return c.do(ctx, method, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: reqURL, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
