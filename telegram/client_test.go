package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"botflow/engine"
)

type recordedCall struct {
	Path    string
	Payload map[string]any
}

// fakeAPI is a stand-in Bot API server recording every call.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(path string) any
	server  *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("unexpected body decode error: %v", err)
		}

		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Path: r.URL.Path, Payload: payload})
		respond := f.respond
		f.mu.Unlock()

		var body any = map[string]any{"ok": true}
		if respond != nil {
			body = respond(r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestClient(t *testing.T, api *fakeAPI, onUpdate UpdateHandler) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:        api.server.URL,
		PollIntervalMS: 100,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), onUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.cfg.BaseURL != "https://api.telegram.org" {
		t.Errorf("BaseURL = %q", client.cfg.BaseURL)
	}
	if client.cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.cfg.Timeout)
	}
	if client.cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", client.cfg.MaxRetries)
	}
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSendMessage(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api, nil)

	err := client.SendMessage(context.Background(), "tok", 42, "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := api.recorded()
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].Path != "/bottok/sendMessage" {
		t.Errorf("path = %q", calls[0].Path)
	}
	if calls[0].Payload["chat_id"] != float64(42) || calls[0].Payload["text"] != "hello" {
		t.Errorf("payload = %v", calls[0].Payload)
	}
}

func TestSendMessageWithInlineKeyboard(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api, nil)

	keyboard := &engine.Keyboard{
		Inline: true,
		Buttons: [][]engine.Button{
			{{Text: "Yes", CallbackData: "yes"}},
		},
	}
	if err := client.SendMessage(context.Background(), "tok", 42, "pick", keyboard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := api.recorded()[0].Payload
	markup, ok := payload["reply_markup"].(map[string]any)
	if !ok {
		t.Fatalf("reply_markup = %v", payload["reply_markup"])
	}
	rows, ok := markup["inline_keyboard"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("inline_keyboard = %v", markup["inline_keyboard"])
	}
	button := rows[0].([]any)[0].(map[string]any)
	if button["text"] != "Yes" || button["callback_data"] != "yes" {
		t.Errorf("button = %v", button)
	}
}

func TestSendMessageWithReplyKeyboard(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api, nil)

	keyboard := &engine.Keyboard{
		Buttons: [][]engine.Button{{{Text: "Menu"}}},
	}
	if err := client.SendMessage(context.Background(), "tok", 42, "pick", keyboard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	markup := api.recorded()[0].Payload["reply_markup"].(map[string]any)
	if _, ok := markup["keyboard"]; !ok {
		t.Errorf("markup = %v, want a reply keyboard", markup)
	}
	if markup["resize_keyboard"] != true {
		t.Error("expected resize_keyboard to be set")
	}
}

func TestAPIErrorResponse(t *testing.T) {
	api := newFakeAPI(t)
	api.respond = func(string) any {
		return map[string]any{"ok": false, "description": "Unauthorized"}
	}
	client := newTestClient(t, api, nil)

	err := client.SendMessage(context.Background(), "bad", 42, "hello", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSendMediaGroup(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api, nil)

	items := []engine.MediaItem{
		{Type: "photo", URL: "https://example.com/a.jpg", Caption: "first"},
		{Type: "video", URL: "https://example.com/b.mp4"},
	}
	if err := client.SendMediaGroup(context.Background(), "tok", 42, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := api.recorded()[0].Payload
	media, ok := payload["media"].([]any)
	if !ok || len(media) != 2 {
		t.Fatalf("media = %v", payload["media"])
	}
	first := media[0].(map[string]any)
	if first["type"] != "photo" || first["media"] != "https://example.com/a.jpg" || first["caption"] != "first" {
		t.Errorf("first item = %v", first)
	}
	second := media[1].(map[string]any)
	if _, ok := second["caption"]; ok {
		t.Error("empty caption must be omitted")
	}
}

func TestAnswerCallbackQuery(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api, nil)

	if err := client.AnswerCallbackQuery(context.Background(), "tok", "q1", "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := api.recorded()[0].Payload
	if payload["callback_query_id"] != "q1" || payload["text"] != "done" {
		t.Errorf("payload = %v", payload)
	}
}

func TestMapUpdate(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		raw := []byte(`{"update_id": 10, "message": {"text": "hi", "chat": {"id": 42}}}`)
		var wire wireUpdate
		if err := json.Unmarshal(raw, &wire); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mapped, ok := mapUpdate(wire)
		if !ok {
			t.Fatal("expected a mapped update")
		}
		if mapped.UpdateID != 10 || mapped.ChatID != 42 || mapped.Message != "hi" {
			t.Errorf("mapped = %+v", mapped)
		}
	})

	t.Run("callback query", func(t *testing.T) {
		raw := []byte(`{"update_id": 11, "callback_query": {"id": "q1", "data": "buy", "message": {"chat": {"id": 42}}}}`)
		var wire wireUpdate
		if err := json.Unmarshal(raw, &wire); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mapped, ok := mapUpdate(wire)
		if !ok {
			t.Fatal("expected a mapped update")
		}
		if mapped.CallbackQueryID != "q1" || mapped.CallbackData != "buy" || mapped.ChatID != 42 {
			t.Errorf("mapped = %+v", mapped)
		}
	})

	t.Run("unsupported update kind", func(t *testing.T) {
		if _, ok := mapUpdate(wireUpdate{UpdateID: 12}); ok {
			t.Error("expected the update to be dropped")
		}
	})
}

func TestPolling(t *testing.T) {
	updates := make(chan Update, 10)

	api := newFakeAPI(t)
	var delivered bool
	api.respond = func(path string) any {
		if path != "/bottok/getUpdates" {
			return map[string]any{"ok": true}
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		if delivered {
			return map[string]any{"ok": true, "result": []any{}}
		}
		delivered = true
		return map[string]any{"ok": true, "result": []any{
			map[string]any{
				"update_id": 7,
				"message":   map[string]any{"text": "hi", "chat": map[string]any{"id": 42}},
			},
		}}
	}

	client := newTestClient(t, api, func(token string, u Update) {
		if token == "tok" {
			updates <- u
		}
	})

	if err := client.StartPolling(context.Background(), "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case u := <-updates:
		if u.ChatID != 42 || u.Message != "hi" || u.UpdateID != 7 {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a polled update")
	}

	// After the first batch, later polls must acknowledge it via the offset.
	deadline := time.After(5 * time.Second)
	for {
		var found bool
		for _, call := range api.recorded() {
			if call.Path == "/bottok/getUpdates" && call.Payload["offset"] == float64(8) {
				found = true
			}
		}
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("offset was never advanced past the delivered update")
		case <-time.After(50 * time.Millisecond):
		}
	}

	if err := client.StopPolling(context.Background(), "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
