package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"botflow/engine"
)

var validate = validator.New()

// Config holds the client configuration with declarative tags.
type Config struct {
	BaseURL        string        `yaml:"base_url" default:"https://api.telegram.org" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries     int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
	RetryWaitMS    int           `yaml:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
	PollIntervalMS int           `yaml:"poll_interval_ms" default:"1000" validate:"gte=100"`
	Debug          bool          `yaml:"debug" default:"false"`
}

// Update is one inbound event fetched while polling.
type Update struct {
	UpdateID        int64
	ChatID          int64
	Message         string
	CallbackQueryID string
	CallbackData    string
}

// UpdateHandler receives polled updates. Called from the poller goroutine of
// the bot identified by token.
type UpdateHandler func(token string, update Update)

// Client talks to the Telegram Bot API. It implements engine.Messenger.
// One client serves every bot; calls are keyed by bot token.
type Client struct {
	cfg      Config
	http     *resty.Client
	l        *slog.Logger
	onUpdate UpdateHandler

	mu      sync.Mutex
	pollers map[string]context.CancelFunc
}

func NewClient(cfg Config, l *slog.Logger, onUpdate UpdateHandler) (*Client, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply default values: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)

	return &Client{
		cfg:      cfg,
		http:     httpClient,
		l:        l,
		onUpdate: onUpdate,
		pollers:  make(map[string]context.CancelFunc),
	}, nil
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(ctx context.Context, token, method string, payload map[string]any) error {
	var result apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, token, method))
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram %s failed: %s (status %d)", method, result.Description, resp.StatusCode())
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, text string, keyboard *engine.Keyboard) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = replyMarkup(keyboard)
	}
	return c.call(ctx, token, "sendMessage", payload)
}

// replyMarkup builds the Bot API keyboard structure. Inline keyboards carry
// callback_data; reply keyboards are plain text rows.
func replyMarkup(keyboard *engine.Keyboard) map[string]any {
	rows := make([][]map[string]any, len(keyboard.Buttons))
	for i, row := range keyboard.Buttons {
		buttons := make([]map[string]any, len(row))
		for j, button := range row {
			b := map[string]any{"text": button.Text}
			if keyboard.Inline && button.CallbackData != "" {
				b["callback_data"] = button.CallbackData
			}
			buttons[j] = b
		}
		rows[i] = buttons
	}
	if keyboard.Inline {
		return map[string]any{"inline_keyboard": rows}
	}
	return map[string]any{"keyboard": rows, "resize_keyboard": true}
}

func (c *Client) SendMediaGroup(ctx context.Context, token string, chatID int64, items []engine.MediaItem) error {
	media := make([]map[string]any, len(items))
	for i, item := range items {
		entry := map[string]any{
			"type":  item.Type,
			"media": item.URL,
		}
		if item.Caption != "" {
			entry["caption"] = item.Caption
		}
		media[i] = entry
	}
	return c.call(ctx, token, "sendMediaGroup", map[string]any{
		"chat_id": chatID,
		"media":   media,
	})
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, token string, callbackQueryID string, text string) error {
	payload := map[string]any{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, token, "answerCallbackQuery", payload)
}

func (c *Client) SetWebhook(ctx context.Context, token string, url string) error {
	return c.call(ctx, token, "setWebhook", map[string]any{"url": url})
}

func (c *Client) DeleteWebhook(ctx context.Context, token string) error {
	return c.call(ctx, token, "deleteWebhook", map[string]any{})
}

func (c *Client) SetChatTitle(ctx context.Context, token string, chatID int64, title string) error {
	return c.call(ctx, token, "setChatTitle", map[string]any{"chat_id": chatID, "title": title})
}

func (c *Client) SetChatDescription(ctx context.Context, token string, chatID int64, description string) error {
	return c.call(ctx, token, "setChatDescription", map[string]any{"chat_id": chatID, "description": description})
}

func (c *Client) PinChatMessage(ctx context.Context, token string, chatID int64, messageID int64) error {
	return c.call(ctx, token, "pinChatMessage", map[string]any{"chat_id": chatID, "message_id": messageID})
}

func (c *Client) UnpinChatMessage(ctx context.Context, token string, chatID int64, messageID int64) error {
	return c.call(ctx, token, "unpinChatMessage", map[string]any{"chat_id": chatID, "message_id": messageID})
}

func (c *Client) BanChatMember(ctx context.Context, token string, chatID int64, userID int64) error {
	return c.call(ctx, token, "banChatMember", map[string]any{"chat_id": chatID, "user_id": userID})
}

func (c *Client) UnbanChatMember(ctx context.Context, token string, chatID int64, userID int64) error {
	return c.call(ctx, token, "unbanChatMember", map[string]any{"chat_id": chatID, "user_id": userID})
}
