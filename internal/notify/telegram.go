package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock-tracker/internal/config"
	"stock-tracker/internal/models"
	"stock-tracker/internal/security"
	"stock-tracker/pkg/utils"
)

// DefaultTelegramBaseURL is the Bot API endpoint.
const DefaultTelegramBaseURL = "https://api.telegram.org"

const telegramSendTimeout = 10 * time.Second

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Status      int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Status, e.Description)
	}
	return fmt.Sprintf("telegram %s: status %d", e.Method, e.Status)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func (e *APIError) badMarkdown() bool {
	return e.Status == http.StatusBadRequest && strings.Contains(e.Description, "parse entities")
}

// Update is one incoming Bot API update. Only text messages are decoded.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		Username string `json:"username"`
	} `json:"from"`
	Text string `json:"text"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// TelegramClient is a minimal Bot API client shared by the notifier and the
// command bot.
type TelegramClient struct {
	token   string
	baseURL string
	client  *http.Client
	retry   utils.RetryConfig
}

// NewTelegramClient creates a client for token. An empty baseURL uses the
// public Bot API.
func NewTelegramClient(token, baseURL string) *TelegramClient {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	retry := utils.DefaultRetryConfig()
	retry.Retryable = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.retryable()
		}
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return &TelegramClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		// Calls are bounded by their contexts; getUpdates holds the
		// connection for the whole poll timeout.
		client: &http.Client{},
		retry:  retry,
	}
}

func (c *TelegramClient) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// call posts body to method and decodes the result into out when non-nil.
func (c *TelegramClient) call(ctx context.Context, method, contentType string, body []byte, out any) error {
	_, err := utils.RetryWithResult(ctx, c.retry, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("creating telegram request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("telegram %s: %w", method, security.RedactError(err))
		}
		defer resp.Body.Close()

		var r apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			if resp.StatusCode != http.StatusOK {
				return struct{}{}, &APIError{Method: method, Status: resp.StatusCode}
			}
			return struct{}{}, fmt.Errorf("decoding telegram %s response: %w", method, err)
		}
		if resp.StatusCode != http.StatusOK || !r.OK {
			status := resp.StatusCode
			if r.ErrorCode != 0 {
				status = r.ErrorCode
			}
			return struct{}{}, &APIError{Method: method, Status: status, Description: r.Description}
		}
		if out != nil {
			if err := json.Unmarshal(r.Result, out); err != nil {
				return struct{}{}, fmt.Errorf("decoding telegram %s result: %w", method, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// SendMessage sends text to chatID. Markdown text the API refuses to parse is
// resent as plain text.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string, markdown bool) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markdown {
		payload["parse_mode"] = "Markdown"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	err = c.call(ctx, "sendMessage", "application/json", body, nil)
	var apiErr *APIError
	if markdown && errors.As(err, &apiErr) && apiErr.badMarkdown() {
		return c.SendMessage(ctx, chatID, text, false)
	}
	return err
}

// SendPhoto uploads png to chatID as filename.
func (c *TelegramClient) SendPhoto(ctx context.Context, chatID, filename string, png []byte, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("creating photo part: %w", err)
	}
	if _, err := fw.Write(png); err != nil {
		return fmt.Errorf("writing photo part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}

	return c.call(ctx, "sendPhoto", mw.FormDataContentType(), buf.Bytes(), nil)
}

// GetUpdates long-polls for updates after offset, holding the request for up
// to timeout.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	form := url.Values{}
	form.Set("offset", strconv.FormatInt(offset, 10))
	form.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	form.Set("allowed_updates", `["message"]`)

	ctx, cancel := context.WithTimeout(ctx, timeout+telegramSendTimeout)
	defer cancel()

	var updates []Update
	if err := c.call(ctx, "getUpdates", "application/x-www-form-urlencoded", []byte(form.Encode()), &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// TelegramNotifier delivers notifications to one configured chat.
type TelegramNotifier struct {
	api     *TelegramClient
	chatID  string
	enabled bool
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return NewTelegramNotifierWithClient(NewTelegramClient(cfg.BotToken, ""), cfg.ChatID, cfg.Enabled && cfg.BotToken != "")
}

// NewTelegramNotifierWithClient creates a notifier over an existing client.
func NewTelegramNotifierWithClient(api *TelegramClient, chatID string, enabled bool) *TelegramNotifier {
	return &TelegramNotifier{
		api:     api,
		chatID:  chatID,
		enabled: enabled && chatID != "",
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Client returns the underlying Bot API client.
func (t *TelegramNotifier) Client() *TelegramClient {
	return t.api
}

// ChatID returns the destination chat.
func (t *TelegramNotifier) ChatID() string {
	return t.chatID
}

// SendEvent sends ev formatted as Markdown.
func (t *TelegramNotifier) SendEvent(ctx context.Context, ev models.AlertEvent) error {
	return t.SendText(ctx, FormatEvent(ev))
}

// SendText sends a Markdown message.
func (t *TelegramNotifier) SendText(ctx context.Context, text string) error {
	if !t.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, telegramSendTimeout)
	defer cancel()
	return t.api.SendMessage(ctx, t.chatID, text, true)
}

// SendPhoto sends a PNG attachment.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, filename string, png []byte, caption string) error {
	if !t.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*telegramSendTimeout)
	defer cancel()
	return t.api.SendPhoto(ctx, t.chatID, filename, png, caption)
}
