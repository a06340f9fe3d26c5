package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Update is the inbound event that triggers a run: either a chat message or
// a callback query from a keyboard button.
type Update struct {
	ChatID          int64  `json:"chat_id"`
	Message         string `json:"message"`
	CallbackQueryID string `json:"callback_query_id"`
	CallbackData    string `json:"callback_data"`
}

// Execution is the ephemeral state of one run: the variables, the graph
// snapshot, and the identity of the triggering chat. It is created at run
// start, owned exclusively by that run, and discarded at run end.
type Execution struct {
	ID              string
	BotID           int64
	BotToken        string
	ChatID          int64
	UserMessage     string
	CallbackQueryID string
	CallbackData    string
	Vars            *Variables
	Logic           *Logic

	// steps counts block transitions across the whole run, including nested
	// traversals started by loop and try-catch blocks, so one budget covers
	// everything.
	steps int

	ctx context.Context // real context carrying deadline/cancellation
}

func NewExecution(ctx context.Context, bot *Bot, update Update, vars *Variables) *Execution {
	exec := &Execution{
		ID:              uuid.New().String(),
		BotID:           bot.ID,
		BotToken:        bot.Token,
		ChatID:          update.ChatID,
		UserMessage:     update.Message,
		CallbackQueryID: update.CallbackQueryID,
		CallbackData:    update.CallbackData,
		Vars:            vars,
		Logic:           bot.Logic,
		ctx:             ctx,
	}

	vars.Define("chat_id", update.ChatID)
	vars.Define("user_message", update.Message)
	if update.CallbackQueryID != "" {
		vars.Define("callback_query_id", update.CallbackQueryID)
	}

	return exec
}

// context.Context implementation, delegating to the embedded ctx so that
// deadlines and cancellation propagate through slog and client calls made
// with the execution as context.

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	k, ok := key.(string)
	if !ok {
		return e.ctx.Value(key)
	}
	v, _ := e.Vars.Get(k)
	return v
}

// WithContext returns a shallow copy with a new embedded context. Mirrors the
// http.Request.WithContext pattern.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	copied := *e
	copied.ctx = ctx
	return &copied
}
