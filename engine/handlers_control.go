package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type variableContent struct {
	Action     string `mapstructure:"action"`
	Name       string `mapstructure:"name"`
	Value      any    `mapstructure:"value"`
	SourceName string `mapstructure:"source_name"`
	TargetName string `mapstructure:"target_name"`
}

// handleVariable delegates to the variable store per the block's action.
// Assign, retrieve and update silently no-op on missing names; only a
// malformed block or a broken value template fails.
func (m *Manager) handleVariable(exec *Execution, block *Block) (int64, error) {
	var content variableContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	switch content.Action {
	case "define":
		if content.Name == "" {
			m.l.WarnContext(exec, fmt.Sprintf("Variable block %d has no name", block.ID))
			break
		}
		value := content.Value
		if s, ok := value.(string); ok {
			rendered, err := m.renderer.Render(s, exec.Vars.All())
			if err != nil {
				return 0, err
			}
			value = rendered
		}
		exec.Vars.Define(content.Name, value)
	case "assign":
		if err := exec.Vars.Assign(content.Name, content.Value); err != nil {
			return 0, err
		}
	case "retrieve":
		if content.TargetName == "" {
			m.l.WarnContext(exec, fmt.Sprintf("Variable block %d has no target name", block.ID))
			break
		}
		source := content.SourceName
		if source == "" {
			source = content.Name
		}
		exec.Vars.Retrieve(source, content.TargetName)
	case "update":
		if err := exec.Vars.Update(content.Name, content.Value); err != nil {
			return 0, err
		}
	default:
		m.l.WarnContext(exec, fmt.Sprintf("Unsupported variable action: %s", content.Action))
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

type logMessageContent struct {
	Message string `mapstructure:"message"`
	Level   string `mapstructure:"level"`
}

// handleLogMessage renders the message template and dispatches it to the
// severity-appropriate log sink. Unsupported levels are dropped with a
// warning, never an error.
func (m *Manager) handleLogMessage(exec *Execution, block *Block) (int64, error) {
	var content logMessageContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	next := exec.Logic.FirstOutgoing(block.ID)
	if content.Message == "" {
		m.l.WarnContext(exec, fmt.Sprintf("Log block %d has no message", block.ID))
		return next, nil
	}

	message, err := m.renderer.Render(content.Message, exec.Vars.All())
	if err != nil {
		return 0, err
	}

	level := strings.ToUpper(content.Level)
	if level == "" {
		level = "INFO"
	}
	switch level {
	case "DEBUG":
		m.l.DebugContext(exec, message, "chat_id", exec.ChatID)
	case "INFO":
		m.l.InfoContext(exec, message, "chat_id", exec.ChatID)
	case "WARNING":
		m.l.WarnContext(exec, message, "chat_id", exec.ChatID)
	case "ERROR":
		m.l.ErrorContext(exec, message, "chat_id", exec.ChatID)
	case "CRITICAL":
		m.l.ErrorContext(exec, message, "chat_id", exec.ChatID, "level", "critical")
	default:
		m.l.WarnContext(exec, fmt.Sprintf("Unsupported log level: %s", content.Level))
	}

	return next, nil
}

type raiseErrorContent struct {
	Message string `mapstructure:"message"`
}

// handleRaiseError terminates the run with a handler error carrying the
// rendered message.
func (m *Manager) handleRaiseError(exec *Execution, block *Block) (int64, error) {
	var content raiseErrorContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	message := "error raised by bot"
	if content.Message != "" {
		rendered, err := m.renderer.Render(content.Message, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		message = rendered
	}

	return 0, &RunError{
		Kind:      KindHandler,
		BlockID:   block.ID,
		BlockType: block.Type,
		Message:   message,
	}
}

type tryCatchContent struct {
	CatchBlockID int64 `mapstructure:"catch_block_id"`
}

// handleTryCatch runs the subtree behind the first outgoing connection and,
// when it fails, diverts to the catch block instead of terminating the run.
// Cancellation and budget exhaustion still propagate: a catch block must not
// resurrect a run that is out of budget or cancelled.
func (m *Manager) handleTryCatch(exec *Execution, block *Block) (int64, error) {
	var content tryCatchContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	body := exec.Logic.FirstOutgoing(block.ID)
	if body == 0 {
		return 0, nil
	}

	err := m.runFrom(exec, body)
	if err == nil {
		return 0, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || KindOf(err) == KindStepBudgetExceeded {
		return 0, err
	}

	m.l.WarnContext(exec, fmt.Sprintf("Caught error in try block: %v", err))
	if content.CatchBlockID == 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Try-catch block %d has no catch block", block.ID))
		return 0, nil
	}
	return content.CatchBlockID, nil
}

type handleExceptionContent struct {
	ExceptionBlockID int64 `mapstructure:"exception_block_id"`
}

// handleHandleException jumps to the configured exception block.
func (m *Manager) handleHandleException(exec *Execution, block *Block) (int64, error) {
	var content handleExceptionContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.ExceptionBlockID == 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Exception block was not defined for block %d", block.ID))
		return 0, nil
	}
	return content.ExceptionBlockID, nil
}

type timerContent struct {
	Delay string `mapstructure:"delay"`
}

// handleTimer pauses the run for a templated number of seconds before
// advancing. The wait is cooperative: run cancellation or timeout interrupts
// it immediately.
func (m *Manager) handleTimer(exec *Execution, block *Block) (int64, error) {
	var content timerContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	rendered, err := m.renderer.Render(content.Delay, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	delay, err := strconv.Atoi(strings.TrimSpace(rendered))
	if err != nil {
		return 0, newValidationError(fmt.Sprintf("timer block %d has non-numeric delay %q", block.ID, rendered), err)
	}
	if delay <= 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Timer block %d has non-positive delay %d", block.ID, delay))
		return 0, nil
	}

	timer := time.NewTimer(time.Duration(delay) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-exec.Done():
		return 0, exec.Err()
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}

type rateLimitContent struct {
	Limit    string `mapstructure:"limit"`
	Interval string `mapstructure:"interval"`
}

// handleRateLimit counts this chat's passes through the block and halts the
// branch once the configured limit within the interval is reached. The
// counter is keyed per chat and block, so limits on different blocks are
// independent.
func (m *Manager) handleRateLimit(exec *Execution, block *Block) (int64, error) {
	var content rateLimitContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}
	if content.Limit == "" || content.Interval == "" {
		m.l.WarnContext(exec, fmt.Sprintf("Rate limit block %d is missing limit or interval", block.ID))
		return 0, nil
	}
	if m.limiter == nil {
		return 0, newValidationError(fmt.Sprintf("rate limit block %d requires a rate limiter backend", block.ID), nil)
	}

	limitRaw, err := m.renderer.Render(content.Limit, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	intervalRaw, err := m.renderer.Render(content.Interval, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	limit, err := strconv.Atoi(strings.TrimSpace(limitRaw))
	if err != nil {
		return 0, newValidationError(fmt.Sprintf("rate limit block %d has non-numeric limit %q", block.ID, limitRaw), err)
	}
	interval, err := strconv.Atoi(strings.TrimSpace(intervalRaw))
	if err != nil {
		return 0, newValidationError(fmt.Sprintf("rate limit block %d has non-numeric interval %q", block.ID, intervalRaw), err)
	}

	key := fmt.Sprintf("%d:%d", exec.ChatID, block.ID)
	allowed, err := m.limiter.Allow(exec, key, limit, time.Duration(interval)*time.Second)
	if err != nil {
		return 0, fmt.Errorf("error checking rate limit: %w", err)
	}
	if !allowed {
		m.l.WarnContext(exec, fmt.Sprintf("Rate limit exceeded for chat %d on block %d", exec.ChatID, block.ID))
		return 0, nil
	}

	return exec.Logic.FirstOutgoing(block.ID), nil
}
