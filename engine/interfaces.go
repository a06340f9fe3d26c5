package engine

import (
	"context"
	"time"
)

// Button is one keyboard button. CallbackData is set on inline buttons only.
type Button struct {
	Text         string `json:"text" mapstructure:"text"`
	CallbackData string `json:"callback_data,omitempty" mapstructure:"callback_data"`
}

// Keyboard is a reply or inline keyboard: rows of buttons.
type Keyboard struct {
	Inline  bool
	Buttons [][]Button
}

// MediaItem is one element of a media group.
type MediaItem struct {
	Type    string `json:"type" mapstructure:"type"`
	URL     string `json:"url" mapstructure:"url"`
	Caption string `json:"caption,omitempty" mapstructure:"caption"`
}

// Messenger is the outbound capability of the messaging platform. All calls
// may fail with a platform error, which the calling handler wraps into a
// run-terminal handler error.
type Messenger interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string, keyboard *Keyboard) error
	SendMediaGroup(ctx context.Context, token string, chatID int64, items []MediaItem) error
	AnswerCallbackQuery(ctx context.Context, token string, callbackQueryID string, text string) error
	SetWebhook(ctx context.Context, token string, url string) error
	DeleteWebhook(ctx context.Context, token string) error
	StartPolling(ctx context.Context, token string) error
	StopPolling(ctx context.Context, token string) error

	SetChatTitle(ctx context.Context, token string, chatID int64, title string) error
	SetChatDescription(ctx context.Context, token string, chatID int64, description string) error
	PinChatMessage(ctx context.Context, token string, chatID int64, messageID int64) error
	UnpinChatMessage(ctx context.Context, token string, chatID int64, messageID int64) error
	BanChatMember(ctx context.Context, token string, chatID int64, userID int64) error
	UnbanChatMember(ctx context.Context, token string, chatID int64, userID int64) error
}

// UserData persists per-chat key/value data across runs.
type UserData interface {
	Save(ctx context.Context, chatID int64, data map[string]any) error
	Retrieve(ctx context.Context, chatID int64, key string) (any, bool, error)
	Clear(ctx context.Context, chatID int64) error
}

// Database runs a parameterized query and returns the result rows. The
// engine never sees connection details, only rendered query text and
// named parameters.
type Database interface {
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// RateLimiter counts events per key within a sliding window. Allow reports
// whether the event under key stays within limit for the interval.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, interval time.Duration) (bool, error)
}
