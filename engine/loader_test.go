package engine

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleBotYAML = `
id: 5
user_id: 9
name: support
token: ${LOADER_TEST_TOKEN:fallback-token}
status: active
logic:
  start_block_id: 1
  blocks:
    - id: 1
      bot_id: 5
      type: message
      content:
        text: /start
    - id: 2
      bot_id: 5
      type: send_text
      content:
        text: Welcome!
  connections:
    - id: 10
      bot_id: 5
      source_block_id: 1
      target_block_id: 2
      type: default
`

func writeBotFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadBots(t *testing.T) {
	dir := t.TempDir()
	writeBotFile(t, dir, "support.yaml", sampleBotYAML)

	bots, err := LoadBots(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bots) != 1 {
		t.Fatalf("loaded %d bots, want 1", len(bots))
	}

	bot, ok := bots[5]
	if !ok {
		t.Fatal("expected bot 5")
	}
	if bot.Name != "support" || bot.UserID != 9 || bot.Status != "active" {
		t.Errorf("bot = %+v", bot)
	}
	if bot.Token != "fallback-token" {
		t.Errorf("token = %q, want 'fallback-token'", bot.Token)
	}
	if bot.Logic.StartBlockID != 1 || bot.Logic.Len() != 2 {
		t.Errorf("logic = start %d, %d blocks", bot.Logic.StartBlockID, bot.Logic.Len())
	}

	block, ok := bot.Logic.BlockByID(2)
	if !ok || block.Type != BlockSendText || block.Content["text"] != "Welcome!" {
		t.Errorf("block 2 = %+v", block)
	}
	if got := bot.Logic.FirstOutgoing(1); got != 2 {
		t.Errorf("next of 1 = %d, want 2", got)
	}
}

func TestLoadBotsResolvesToken(t *testing.T) {
	t.Setenv("LOADER_TEST_TOKEN", "real-token")

	dir := t.TempDir()
	writeBotFile(t, dir, "support.yaml", sampleBotYAML)

	bots, err := LoadBots(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bots[5].Token != "real-token" {
		t.Errorf("token = %q, want 'real-token'", bots[5].Token)
	}
}

func TestLoadBotsEmptyDir(t *testing.T) {
	bots, err := LoadBots(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bots) != 0 {
		t.Errorf("loaded %d bots, want 0", len(bots))
	}
}

func TestLoadBotsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "name: nameless\n"},
		{"invalid yaml", "id: [broken\n"},
		{"foreign connection", `
id: 5
logic:
  start_block_id: 1
  connections:
    - id: 1
      bot_id: 99
      source_block_id: 1
      target_block_id: 2
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeBotFile(t, dir, "bot.yaml", tt.content)

			if _, err := LoadBots(dir); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
