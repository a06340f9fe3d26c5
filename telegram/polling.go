package telegram

import (
	"context"
	"fmt"
	"time"
)

// wireUpdate mirrors the subset of the Bot API update payload the engine
// consumes.
type wireUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type getUpdatesResponse struct {
	OK          bool         `json:"ok"`
	Description string       `json:"description"`
	Result      []wireUpdate `json:"result"`
}

// StartPolling begins fetching updates for the bot identified by token.
// The poller outlives the run that started it; it stops on StopPolling or
// client Close. Starting an already-polling bot is a no-op.
func (c *Client) StartPolling(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.pollers[token]; running {
		return nil
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c.pollers[token] = cancel
	go c.poll(pollCtx, token)
	return nil
}

// StopPolling stops the poller for the bot identified by token, if any.
func (c *Client) StopPolling(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancel, running := c.pollers[token]
	if !running {
		return nil
	}
	cancel()
	delete(c.pollers, token)
	return nil
}

// Close stops every poller.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, cancel := range c.pollers {
		cancel()
		delete(c.pollers, token)
	}
}

func (c *Client) poll(ctx context.Context, token string) {
	interval := time.Duration(c.cfg.PollIntervalMS) * time.Millisecond
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		updates, err := c.getUpdates(ctx, token, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.l.Error("Polling getUpdates failed", "error", err)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if c.onUpdate == nil {
				continue
			}
			if mapped, ok := mapUpdate(u); ok {
				c.onUpdate(token, mapped)
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, token string, offset int64) ([]wireUpdate, error) {
	var result getUpdatesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"offset": offset}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/getUpdates", c.cfg.BaseURL, token))
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	if resp.IsError() || !result.OK {
		return nil, fmt.Errorf("telegram getUpdates failed: %s (status %d)", result.Description, resp.StatusCode())
	}
	return result.Result, nil
}

func mapUpdate(u wireUpdate) (Update, bool) {
	switch {
	case u.Message != nil:
		return Update{
			UpdateID: u.UpdateID,
			ChatID:   u.Message.Chat.ID,
			Message:  u.Message.Text,
		}, true
	case u.CallbackQuery != nil:
		mapped := Update{
			UpdateID:        u.UpdateID,
			CallbackQueryID: u.CallbackQuery.ID,
			CallbackData:    u.CallbackQuery.Data,
		}
		if u.CallbackQuery.Message != nil {
			mapped.ChatID = u.CallbackQuery.Message.Chat.ID
		}
		return mapped, true
	default:
		return Update{}, false
	}
}
