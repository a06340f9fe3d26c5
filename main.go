package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"botflow/database"
	"botflow/engine"
	"botflow/server"
	"botflow/telegram"
	"botflow/userdata"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	bots, err := engine.LoadBots("bots")
	if err != nil {
		log.Fatalf("Error loading bot definitions: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	var store engine.UserData
	var limiter engine.RateLimiter
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		store = userdata.NewFromClient(client)
		limiter = userdata.NewLimiter(client)
	}

	var db engine.Database
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := database.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer pg.Close()
		db = pg
	}

	var handler *server.Handler

	client, err := telegram.NewClient(telegram.Config{}, logger, func(token string, u telegram.Update) {
		for _, bot := range bots {
			if bot.Token != token {
				continue
			}
			handler.Dispatch(bot, engine.Update{
				ChatID:          u.ChatID,
				Message:         u.Message,
				CallbackQueryID: u.CallbackQueryID,
				CallbackData:    u.CallbackData,
			})
			return
		}
	})
	if err != nil {
		log.Fatalf("Error initializing telegram client: %v", err)
	}
	defer client.Close()

	manager, err := engine.NewManager(engine.Config{}, logger, client, store, db, limiter, metrics)
	if err != nil {
		log.Fatalf("Error initializing logic manager: %v", err)
	}

	handler = server.NewHandler(manager, bots, logger)

	g := gin.Default()
	handler.Register(g, registry)

	if err := g.Run(":8080"); err != nil {
		log.Fatalf("Error running server: %v", err)
	}
}
