package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// TerminationReason is the reason code a run's caller receives.
type TerminationReason string

const (
	ReasonCompleted            TerminationReason = "completed"
	ReasonBlockNotFound        TerminationReason = "block_not_found"
	ReasonUnsupportedBlockType TerminationReason = "unsupported_block_type"
	ReasonHandlerError         TerminationReason = "handler_error"
	ReasonStepBudgetExceeded   TerminationReason = "step_budget_exceeded"
	ReasonTemplateError        TerminationReason = "template_error"
	ReasonValidationError      TerminationReason = "validation_error"
	ReasonCancelled            TerminationReason = "cancelled"
)

// Outcome summarizes one finished run.
type Outcome struct {
	RunID     string
	Reason    TerminationReason
	Steps     int
	Variables map[string]any
}

type handlerFunc func(exec *Execution, block *Block) (int64, error)

// Manager is the interpreter: it walks a bot's graph snapshot one block at a
// time, dispatching each block to its type handler and advancing on the
// returned next-block id.
//
// One Manager serves many concurrent runs. Each run owns its Execution; the
// only shared structures are the compiled template/expression caches, which
// are concurrency-safe.
type Manager struct {
	cfg       Config
	l         *slog.Logger
	renderer  *Renderer
	evaluator *Evaluator
	messenger Messenger
	userData  UserData
	db        Database
	limiter   RateLimiter
	http      *resty.Client
	metrics   *Metrics
	handlers  map[BlockType]handlerFunc
}

func NewManager(cfg Config, l *slog.Logger, messenger Messenger, userData UserData, db Database, limiter RateLimiter, metrics *Metrics) (*Manager, error) {
	if err := PrepareConfig(&cfg); err != nil {
		return nil, err
	}

	renderer, err := NewRenderer(cfg.TemplateCacheSize)
	if err != nil {
		return nil, err
	}
	evaluator, err := NewEvaluator(cfg.ExpressionCacheSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		l:         l,
		renderer:  renderer,
		evaluator: evaluator,
		messenger: messenger,
		userData:  userData,
		db:        db,
		limiter:   limiter,
		http:      resty.New().SetTimeout(cfg.APIRequestTimeout),
		metrics:   metrics,
	}
	m.handlers = m.buildRegistry()
	return m, nil
}

// buildRegistry wires every supported block type to its handler. Built once
// at startup; an unknown type at run time terminates that run with
// unsupported_block_type instead of failing silently.
func (m *Manager) buildRegistry() map[BlockType]handlerFunc {
	return map[BlockType]handlerFunc{
		BlockMessage:              m.handleMessage,
		BlockSendText:             m.handleSendText,
		BlockMediaGroup:           m.handleMediaGroup,
		BlockKeyboard:             m.handleKeyboard,
		BlockCallback:             m.handleCallback,
		BlockSendCallbackResponse: m.handleSendCallbackResponse,
		BlockSetWebhook:           m.handleSetWebhook,
		BlockDeleteWebhook:        m.handleDeleteWebhook,
		BlockStartPolling:         m.handleStartPolling,
		BlockStopPolling:          m.handleStopPolling,
		BlockCustomFilter:         m.handleCustomFilter,
		BlockAPIRequest:           m.handleAPIRequest,
		BlockDatabase:             m.handleDatabase,
		BlockVariable:             m.handleVariable,
		BlockLogMessage:           m.handleLogMessage,
		BlockIfCondition:          m.handleIfCondition,
		BlockLoop:                 m.handleLoop,
		BlockTimer:                m.handleTimer,
		BlockRateLimit:            m.handleRateLimit,
		BlockStateMachine:         m.handleStateMachine,
		BlockRaiseError:           m.handleRaiseError,
		BlockTryCatch:             m.handleTryCatch,
		BlockHandleException:      m.handleHandleException,
		BlockSetChatTitle:         m.handleSetChatTitle,
		BlockSetChatDescription:   m.handleSetChatDescription,
		BlockPinMessage:           m.handlePinMessage,
		BlockUnpinMessage:         m.handleUnpinMessage,
		BlockBanUser:              m.handleBanUser,
		BlockUnbanUser:            m.handleUnbanUser,
		BlockSaveUserData:         m.handleSaveUserData,
		BlockRetrieveUserData:     m.handleRetrieveUserData,
		BlockClearUserData:        m.handleClearUserData,
	}
}

// Renderer exposes the shared template renderer, e.g. for authoring-time
// validation of block content.
func (m *Manager) Renderer() *Renderer {
	return m.renderer
}

// Evaluator exposes the shared filter evaluator for authoring-time checks.
func (m *Manager) Evaluator() *Evaluator {
	return m.evaluator
}

// Run executes bot logic for one inbound update. A failure terminates this
// run only; it is reported through the outcome's reason code and the returned
// error, never as a panic, so sibling runs for other chats are unaffected.
func (m *Manager) Run(ctx context.Context, bot *Bot, update Update) (Outcome, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, m.cfg.RunTimeout)
	defer cancel()

	exec := NewExecution(runCtx, bot, update, NewVariables(m.renderer))

	outcome := Outcome{RunID: exec.ID}
	if bot.Logic == nil || bot.Logic.StartBlockID == 0 {
		err := newValidationError(fmt.Sprintf("bot %d has no logic entry block", bot.ID), nil)
		outcome.Reason = ReasonValidationError
		outcome.Variables = exec.Vars.Snapshot()
		m.metrics.observeRun(outcome.Reason, time.Since(start).Seconds())
		return outcome, err
	}

	m.l.InfoContext(exec, fmt.Sprintf("Starting run for bot %d", bot.ID),
		"run_id", exec.ID,
		"chat_id", exec.ChatID,
		"start_block_id", bot.Logic.StartBlockID)

	err := m.runFrom(exec, bot.Logic.StartBlockID)

	outcome.Steps = exec.steps
	outcome.Reason = reasonFor(err)
	outcome.Variables = exec.Vars.Snapshot()
	m.metrics.observeRun(outcome.Reason, time.Since(start).Seconds())

	if err != nil {
		var re *RunError
		if errors.As(err, &re) {
			m.l.ErrorContext(exec, "Run terminated with error",
				"run_id", exec.ID,
				"chat_id", exec.ChatID,
				"kind", string(re.Kind),
				"block_id", re.BlockID,
				"block_type", string(re.BlockType),
				"cause", re.Cause)
		} else {
			m.l.ErrorContext(exec, "Run terminated with error",
				"run_id", exec.ID,
				"chat_id", exec.ChatID,
				"error", err)
		}
		return outcome, err
	}

	m.l.InfoContext(exec, "Run completed",
		"run_id", exec.ID,
		"chat_id", exec.ChatID,
		"steps", outcome.Steps)
	return outcome, nil
}

// runFrom walks the graph from blockID until no next block remains, the step
// budget is exhausted, the run is cancelled, or a handler fails. The step
// counter lives on the execution so nested traversals (loop, try-catch) draw
// from the same budget.
func (m *Manager) runFrom(exec *Execution, blockID int64) error {
	current := blockID
	for current != 0 {
		if err := exec.Err(); err != nil {
			return err
		}

		exec.steps++
		if exec.steps > m.cfg.StepBudget {
			return newStepBudgetExceededError(m.cfg.StepBudget)
		}

		block, ok := exec.Logic.BlockByID(current)
		if !ok {
			return newBlockNotFoundError(current)
		}

		handler, ok := m.handlers[block.Type]
		if !ok {
			return newUnsupportedBlockTypeError(block)
		}

		m.l.InfoContext(exec, fmt.Sprintf("Executing block %d", block.ID),
			"block_type", string(block.Type))
		m.metrics.observeStep(block.Type)

		next, err := handler(exec, block)
		if err != nil {
			return wrapHandlerError(block, err)
		}

		current = next
	}
	return nil
}

func reasonFor(err error) TerminationReason {
	if err == nil {
		return ReasonCompleted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonCancelled
	}
	switch KindOf(err) {
	case KindBlockNotFound:
		return ReasonBlockNotFound
	case KindUnsupportedBlockType:
		return ReasonUnsupportedBlockType
	case KindStepBudgetExceeded:
		return ReasonStepBudgetExceeded
	case KindTemplate:
		return ReasonTemplateError
	case KindValidation:
		return ReasonValidationError
	default:
		return ReasonHandlerError
	}
}
