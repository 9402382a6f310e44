package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/soundloom/companion-bot/internal/handlers"
)

type RouterConfig struct {
	ServiceName    string
	WebhookHandler *handlers.WebhookHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Telegram-Bot-Api-Secret-Token"},
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/webhook", cfg.WebhookHandler.HandleUpdate)

	return router
}
