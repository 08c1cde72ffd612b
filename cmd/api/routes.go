package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/caixafacil/caixafacil/internal/middleware"
)

// buildRouter wires every HTTP route onto a gin engine.
func buildRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(
		deps.Config.Server.RateLimitPerSecond,
		deps.Config.Server.RateLimitBurst,
	))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("/analyze", deps.ImportHandler.Analyze)
			imports.POST("", deps.ImportHandler.Import)
			imports.GET("/jobs", deps.ImportHandler.ListJobs)
			imports.GET("/jobs/:id", deps.ImportHandler.GetJob)
		}

		txns := v1.Group("/transactions")
		{
			txns.GET("", deps.TransactionsHandler.List)
			txns.GET("/summary", deps.TransactionsHandler.Summary)
			txns.DELETE("/:id", deps.TransactionsHandler.Delete)
			txns.PATCH("/:id/category", deps.TransactionsHandler.Recategorize)
		}

		accounts := v1.Group("/accounts")
		{
			accounts.GET("", deps.TransactionsHandler.ListAccounts)
			accounts.POST("", deps.TransactionsHandler.CreateAccount)
			accounts.GET("/:id", deps.TransactionsHandler.GetAccount)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", deps.CategoriesHandler.List)
			categories.GET("/search", deps.CategoriesHandler.Search)
		}

		v1.POST("/advisor/chat", deps.AdvisorHandler.Chat)

		if deps.SyncHandler != nil {
			syncGroup := v1.Group("/sync")
			{
				syncGroup.POST("/connect", deps.SyncHandler.Connect)
				syncGroup.POST("/run", deps.SyncHandler.Run)
			}
		}
	}

	return r
}
