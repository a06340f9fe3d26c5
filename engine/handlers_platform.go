package engine

import "fmt"

type webhookContent struct {
	URL string `mapstructure:"url"`
}

// handleSetWebhook validates the target URL and registers it with the
// messaging platform. Side-effect-only step: it advances the default edge so
// it can sit mid-chain.
func (m *Manager) handleSetWebhook(exec *Execution, block *Block) (int64, error) {
	var content webhookContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	url, err := m.renderer.Render(content.URL, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	if err := ValidateWebhookURL(url); err != nil {
		return 0, err
	}

	if err := m.messenger.SetWebhook(exec, exec.BotToken, url); err != nil {
		return 0, fmt.Errorf("error setting webhook: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleDeleteWebhook(exec *Execution, block *Block) (int64, error) {
	if err := m.messenger.DeleteWebhook(exec, exec.BotToken); err != nil {
		return 0, fmt.Errorf("error deleting webhook: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleStartPolling(exec *Execution, block *Block) (int64, error) {
	if err := m.messenger.StartPolling(exec, exec.BotToken); err != nil {
		return 0, fmt.Errorf("error starting polling: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleStopPolling(exec *Execution, block *Block) (int64, error) {
	if err := m.messenger.StopPolling(exec, exec.BotToken); err != nil {
		return 0, fmt.Errorf("error stopping polling: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type chatTitleContent struct {
	Title string `mapstructure:"title"`
}

func (m *Manager) handleSetChatTitle(exec *Execution, block *Block) (int64, error) {
	var content chatTitleContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Title != "" {
		title, err := m.renderer.Render(content.Title, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if err := m.messenger.SetChatTitle(exec, exec.BotToken, exec.ChatID, title); err != nil {
			return 0, fmt.Errorf("error setting chat title: %w", err)
		}
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type chatDescriptionContent struct {
	Description string `mapstructure:"description"`
}

func (m *Manager) handleSetChatDescription(exec *Execution, block *Block) (int64, error) {
	var content chatDescriptionContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Description != "" {
		description, err := m.renderer.Render(content.Description, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if err := m.messenger.SetChatDescription(exec, exec.BotToken, exec.ChatID, description); err != nil {
			return 0, fmt.Errorf("error setting chat description: %w", err)
		}
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type messageRefContent struct {
	MessageID int64 `mapstructure:"message_id"`
}

func (m *Manager) handlePinMessage(exec *Execution, block *Block) (int64, error) {
	var content messageRefContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.MessageID != 0 {
		if err := m.messenger.PinChatMessage(exec, exec.BotToken, exec.ChatID, content.MessageID); err != nil {
			return 0, fmt.Errorf("error pinning message: %w", err)
		}
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleUnpinMessage(exec *Execution, block *Block) (int64, error) {
	var content messageRefContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.MessageID != 0 {
		if err := m.messenger.UnpinChatMessage(exec, exec.BotToken, exec.ChatID, content.MessageID); err != nil {
			return 0, fmt.Errorf("error unpinning message: %w", err)
		}
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type userRefContent struct {
	UserID int64 `mapstructure:"user_id"`
}

func (m *Manager) handleBanUser(exec *Execution, block *Block) (int64, error) {
	var content userRefContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}
	if content.UserID == 0 {
		return 0, newValidationError(fmt.Sprintf("ban block %d has no user_id", block.ID), nil)
	}

	if err := m.messenger.BanChatMember(exec, exec.BotToken, exec.ChatID, content.UserID); err != nil {
		return 0, fmt.Errorf("error banning user: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleUnbanUser(exec *Execution, block *Block) (int64, error) {
	var content userRefContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}
	if content.UserID == 0 {
		return 0, newValidationError(fmt.Sprintf("unban block %d has no user_id", block.ID), nil)
	}

	if err := m.messenger.UnbanChatMember(exec, exec.BotToken, exec.ChatID, content.UserID); err != nil {
		return 0, fmt.Errorf("error unbanning user: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}
