// Package app assembles services, handlers and middleware into the HTTP
// router served by cmd/api.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"finbot/internal/chat"
	"finbot/internal/config"
	_ "finbot/internal/docs" // swagger docs
	"finbot/internal/events"
	"finbot/internal/handlers"
	"finbot/internal/middleware"
	"finbot/internal/services"
	"finbot/internal/validator"
)

// Services bundles the business services behind the router.
type Services struct {
	Users        services.UserServicer
	Transactions services.TransactionServicer
	Budgets      services.BudgetServicer
	Reports      services.ReportServicer
	Activation   services.ActivationServicer
	Audit        services.AuditServicer
}

// NewServices wires the services on db. A nil publisher drops alert events.
func NewServices(db *gorm.DB, cfg *config.Config, publisher events.Publisher) *Services {
	ledger := services.NewBudgetLedger()
	return &Services{
		Users:        services.NewUserService(db),
		Transactions: services.NewTransactionService(db, ledger, publisher),
		Budgets:      services.NewBudgetService(db, ledger, cfg.BudgetWarningThreshold, cfg.BudgetCriticalThreshold),
		Reports:      services.NewReportService(db),
		Activation:   services.NewActivationService(db, cfg.ActivationDefaultDuration),
		Audit:        services.NewAuditService(db),
	}
}

// Dispatcher builds the chat dispatcher over the same services the HTTP API
// uses.
func (s *Services) Dispatcher() *chat.Dispatcher {
	return chat.NewDispatcher(s.Activation, s.Transactions, s.Budgets, s.Reports)
}

// Options are the router's optional collaborators.
type Options struct {
	// InternalAPIKey guards /internal; empty disables those endpoints.
	InternalAPIKey string
	// Chat answers messages posted to /internal/chat/messages.
	Chat handlers.MessageHandler
	// Bot is the long-running chat bot, nil when no channel is configured.
	Bot handlers.BotController
	// BotCtx bounds a bot restarted through the admin API.
	BotCtx context.Context
}

// NewRouter builds the gin engine with every route.
func NewRouter(svc *Services, opts Options) *gin.Engine {
	validator.Register()

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Audit)
	budgetHandler := handlers.NewBudgetHandler(svc.Budgets, svc.Reports, svc.Audit)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions, svc.Reports, svc.Audit)
	reportHandler := handlers.NewReportHandler(svc.Reports)
	activationHandler := handlers.NewActivationHandler(svc.Activation, svc.Audit)
	adminHandler := handlers.NewAdminHandler(svc.Activation, svc.Audit, opts.Bot, opts.BotCtx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	v1.POST("/activations/verify", activationHandler.VerifyCode)
	v1.POST("/activations/activate", activationHandler.Activate)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/activations/status", activationHandler.GetStatus)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/current", budgetHandler.GetCurrentBudget)
	budgets.GET("/analysis/overview", budgetHandler.GetBudgetOverview)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.POST("/:id/recalculate", budgetHandler.RecalculateBudget)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/summary/period", transactionHandler.GetPeriodSummary)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	reports := protected.Group("/reports")
	reports.GET("/summary", reportHandler.GetSummary)
	reports.GET("/trends", reportHandler.GetTrends)
	reports.GET("/analysis", reportHandler.GetAnalysis)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.POST("/activation-codes", adminHandler.CreateCode)
	admin.GET("/activation-codes", adminHandler.ListCodes)
	admin.POST("/activation-codes/:code/extend", adminHandler.ExtendCode)
	admin.POST("/activation-codes/:code/deactivate", adminHandler.DeactivateCode)
	admin.GET("/bot/status", adminHandler.BotStatus)
	admin.POST("/bot/restart", adminHandler.BotRestart)

	chatHandler := opts.Chat
	if chatHandler == nil {
		chatHandler = svc.Dispatcher()
	}
	internal := router.Group("/internal")
	internal.Use(middleware.APIKeyMiddleware(opts.InternalAPIKey))
	internal.POST("/chat/messages", handlers.NewChatHandler(chatHandler).HandleMessage)

	return router
}
