package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/emotune/internal/api/handlers"
	"github.com/your-org/emotune/internal/api/ws"
	"github.com/your-org/emotune/internal/auth"
)

type RouterConfig struct {
	CORSOrigins []string
	MetricsKey  string
	Accounts    handlers.AccountService
	Emotion     *handlers.EmotionHandler
	Recommender handlers.Recommender
	System      *handlers.SystemHandler
	// Hub is optional; /ws is only mounted when set.
	Hub *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// System endpoints
	if cfg.System != nil {
		r.GET("/healthz", cfg.System.Healthz)
		r.GET("/readyz", cfg.System.Readyz)
	}
	r.GET("/metrics", auth.APIKeyMiddleware(cfg.MetricsKey), gin.WrapH(promhttp.Handler()))

	// Accounts
	accountH := handlers.NewAccountHandler(cfg.Accounts)
	r.POST("/register", accountH.Register)
	r.POST("/login", accountH.Login)
	r.POST("/request-reset", accountH.RequestReset)
	r.POST("/reset-password", accountH.ResetPassword)

	// Emotion detection
	if cfg.Emotion != nil {
		r.POST("/detect-emotion", cfg.Emotion.Detect)
	}

	// Recommendations
	recH := handlers.NewRecommendationHandler(cfg.Recommender)
	r.GET("/recommendations/:emotion/:language", recH.Get)
	r.GET("/languages", recH.Languages)

	// WebSocket live feed
	if cfg.Hub != nil {
		r.GET("/ws", auth.APIKeyMiddleware(cfg.MetricsKey), cfg.Hub.HandleWS)
	}

	return r
}
