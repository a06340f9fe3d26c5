package engine

import (
	"fmt"
	"strings"
)

type textContent struct {
	Text string `mapstructure:"text"`
}

// handleMessage matches an inbound chat message against the block's rendered
// text. It produces no side effect; the match result is logged and the run
// advances along the default edge either way.
func (m *Manager) handleMessage(exec *Execution, block *Block) (int64, error) {
	var content textContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Text != "" {
		text, err := m.renderer.Render(content.Text, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if strings.Contains(exec.UserMessage, text) {
			m.l.InfoContext(exec, fmt.Sprintf("User message matches block %d", block.ID))
		} else {
			m.l.InfoContext(exec, fmt.Sprintf("User message does not match block %d", block.ID))
		}
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

// handleSendText renders the block text and sends it to the triggering chat.
func (m *Manager) handleSendText(exec *Execution, block *Block) (int64, error) {
	var content textContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Text != "" {
		text, err := m.renderer.Render(content.Text, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if err := m.messenger.SendMessage(exec, exec.BotToken, exec.ChatID, text, nil); err != nil {
			return 0, fmt.Errorf("error sending message: %w", err)
		}
	} else {
		m.l.WarnContext(exec, fmt.Sprintf("Send text block %d has no text", block.ID))
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

type mediaGroupContent struct {
	Items []MediaItem `mapstructure:"items"`
}

// handleMediaGroup renders each item caption and sends the whole group in one
// platform call.
func (m *Manager) handleMediaGroup(exec *Execution, block *Block) (int64, error) {
	var content mediaGroupContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if len(content.Items) == 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Media group block %d has no items", block.ID))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}

	items := make([]MediaItem, len(content.Items))
	for i, item := range content.Items {
		if item.Caption != "" {
			caption, err := m.renderer.Render(item.Caption, exec.Vars.All())
			if err != nil {
				return 0, err
			}
			item.Caption = caption
		}
		items[i] = item
	}

	if err := m.messenger.SendMediaGroup(exec, exec.BotToken, exec.ChatID, items); err != nil {
		return 0, fmt.Errorf("error sending media group: %w", err)
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

type keyboardContent struct {
	KeyboardType string     `mapstructure:"keyboard_type"`
	Text         string     `mapstructure:"text"`
	Buttons      [][]Button `mapstructure:"buttons"`
}

// handleKeyboard builds a reply or inline keyboard from the button rows and
// sends it with a prompt message. Inline buttons keep their callback_data
// untouched; button captions are rendered as templates.
func (m *Manager) handleKeyboard(exec *Execution, block *Block) (int64, error) {
	var content keyboardContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.KeyboardType != "reply" && content.KeyboardType != "inline" {
		m.l.WarnContext(exec, fmt.Sprintf("Unsupported keyboard type: %s", content.KeyboardType))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}

	rows := make([][]Button, len(content.Buttons))
	for i, row := range content.Buttons {
		rendered := make([]Button, len(row))
		for j, button := range row {
			text, err := m.renderer.Render(button.Text, exec.Vars.All())
			if err != nil {
				return 0, err
			}
			rendered[j] = Button{Text: text, CallbackData: button.CallbackData}
		}
		rows[i] = rendered
	}

	prompt := content.Text
	if prompt == "" {
		prompt = "Please select option:"
	} else {
		var err error
		prompt, err = m.renderer.Render(prompt, exec.Vars.All())
		if err != nil {
			return 0, err
		}
	}

	keyboard := &Keyboard{Inline: content.KeyboardType == "inline", Buttons: rows}
	if err := m.messenger.SendMessage(exec, exec.BotToken, exec.ChatID, prompt, keyboard); err != nil {
		return 0, fmt.Errorf("error sending keyboard: %w", err)
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

type callbackContent struct {
	Data string `mapstructure:"data"`
}

// handleCallback renders the block's callback data and matches it against the
// inbound callback payload. The rendered value is stored as the callback_data
// variable for downstream blocks; on a match the run advances, otherwise this
// branch halts.
func (m *Manager) handleCallback(exec *Execution, block *Block) (int64, error) {
	var content callbackContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Data == "" {
		m.l.WarnContext(exec, fmt.Sprintf("Callback block %d has no data", block.ID))
		return 0, nil
	}

	data, err := m.renderer.Render(content.Data, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	exec.Vars.Define("callback_data", data)

	inbound := exec.CallbackData
	if inbound == "" {
		inbound = exec.UserMessage
	}
	if strings.Contains(inbound, data) {
		m.l.InfoContext(exec, fmt.Sprintf("Callback data %q matches", data))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}

	m.l.InfoContext(exec, fmt.Sprintf("Callback data %q does not match", data))
	return 0, nil
}

// handleSendCallbackResponse answers the triggering callback query when the
// block carries text; without text it is a no-op. Advances the default edge
// either way.
func (m *Manager) handleSendCallbackResponse(exec *Execution, block *Block) (int64, error) {
	var content textContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Text != "" && exec.CallbackQueryID != "" {
		text, err := m.renderer.Render(content.Text, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if err := m.messenger.AnswerCallbackQuery(exec, exec.BotToken, exec.CallbackQueryID, text); err != nil {
			return 0, fmt.Errorf("error answering callback query: %w", err)
		}
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}
