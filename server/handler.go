package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"botflow/engine"
)

// Handler receives inbound updates over HTTP and launches interpreter runs.
// Each update gets its own goroutine: runs are independent failure units and
// a slow platform call in one chat must not stall another.
type Handler struct {
	manager *engine.Manager
	l       *slog.Logger

	mu   sync.RWMutex
	bots map[int64]*engine.Bot
}

func NewHandler(manager *engine.Manager, bots map[int64]*engine.Bot, l *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		l:       l,
		bots:    bots,
	}
}

// Register wires the handler's routes onto g.
func (h *Handler) Register(g *gin.Engine, metricsRegistry *prometheus.Registry) {
	g.POST("/bots/:id/updates", h.handleUpdate)
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsRegistry != nil {
		g.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))
	}
}

// SetBot adds or replaces a bot. The next run picks up the new graph; runs
// already in flight keep their snapshot.
func (h *Handler) SetBot(bot *engine.Bot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bots[bot.ID] = bot
}

func (h *Handler) bot(id int64) (*engine.Bot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	bot, ok := h.bots[id]
	return bot, ok
}

func (h *Handler) handleUpdate(c *gin.Context) {
	botID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid bot id"})
		return
	}

	bot, ok := h.bot(botID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "bot not found"})
		return
	}

	var update engine.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid update payload: " + err.Error()})
		return
	}
	if update.ChatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "chat_id is required"})
		return
	}

	go h.runLogic(bot, update)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Dispatch runs bot logic for an update delivered outside the HTTP
// surface, such as long polling.
func (h *Handler) Dispatch(bot *engine.Bot, update engine.Update) {
	go h.runLogic(bot, update)
}

// runLogic executes one run detached from the HTTP request lifecycle. The
// manager owns the run deadline; a failure here is operator-visible through
// logs and metrics, never through the chat.
func (h *Handler) runLogic(bot *engine.Bot, update engine.Update) {
	outcome, err := h.manager.Run(context.Background(), bot, update)
	if err != nil {
		h.l.Error("Run failed",
			"bot_id", bot.ID,
			"chat_id", update.ChatID,
			"run_id", outcome.RunID,
			"reason", string(outcome.Reason),
			"error", err)
		return
	}
	h.l.Info("Run finished",
		"bot_id", bot.ID,
		"chat_id", update.ChatID,
		"run_id", outcome.RunID,
		"steps", outcome.Steps)
}
