// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/closetloop/marketplace-backend/internal/config"
	"github.com/closetloop/marketplace-backend/internal/handlers"
	"github.com/closetloop/marketplace-backend/internal/middleware"
	"github.com/closetloop/marketplace-backend/internal/services"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) (*gin.Engine, error) {
	// Initialize services
	notificationService := services.NewNotificationService(db, logger)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	paymentService := services.NewPaymentService(cfg)
	ledgerService := services.NewLedgerService(db)

	authService := services.NewAuthService(db, cfg)
	productService, err := services.NewProductService(db, cfg.Payment)
	if err != nil {
		return nil, err
	}
	transactionService := services.NewTransactionService(db, ledgerService, paymentService, notificationService)
	payoutService, err := services.NewPayoutService(db, cfg.Payout, notificationService)
	if err != nil {
		return nil, err
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, ledgerService, paymentService)
	adminHandler := handlers.NewAdminHandler(transactionService, ledgerService, payoutService, productService)
	uploadHandler := handlers.NewUploadHandler(storageService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db, logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// Listing routes
		products := v1.Group("/products")
		{
			products.GET("", productHandler.Browse)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.Get)

			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", productHandler.Create)
				protected.GET("/mine", productHandler.MyListings)
				protected.PUT("/:id", productHandler.Update)
				protected.DELETE("/:id", productHandler.Deactivate)
				protected.POST("/:id/purchase", transactionHandler.Purchase)
			}
		}

		// Transaction lifecycle routes
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.POST("", transactionHandler.Initiate)
			transactions.GET("", transactionHandler.List)
			transactions.GET("/:id", transactionHandler.Get)
			transactions.GET("/:id/commission", transactionHandler.GetCommission)
			transactions.POST("/:id/payment", transactionHandler.SubmitPayment)
			transactions.POST("/:id/payment-intent", transactionHandler.CreatePaymentIntent)
			transactions.POST("/:id/ship", transactionHandler.MarkShipped)
			transactions.POST("/:id/delivery", transactionHandler.ConfirmDelivery)
			transactions.POST("/:id/cancel", transactionHandler.Cancel)
		}

		// Seller earnings
		earnings := v1.Group("/earnings")
		earnings.Use(middleware.AuthRequired())
		{
			earnings.GET("", transactionHandler.Earnings)
			earnings.GET("/records", transactionHandler.EarningsRecords)
		}

		// Notifications
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}

		// Evidence uploads
		uploads := v1.Group("/uploads")
		uploads.Use(middleware.AuthRequired(), middleware.UploadRateLimit())
		{
			uploads.POST("/:category", uploadHandler.Upload)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			adminTransactions := admin.Group("/transactions")
			{
				adminTransactions.GET("", adminHandler.ListTransactions)
				adminTransactions.POST("/:id/verify-payment", adminHandler.VerifyPayment)
				adminTransactions.POST("/:id/collect", adminHandler.CollectPlatformPayment)
				adminTransactions.POST("/:id/complete", adminHandler.CompleteTransaction)
				adminTransactions.POST("/:id/refund", adminHandler.RefundTransaction)
				adminTransactions.POST("/:id/payout", adminHandler.RecordPayout)
			}

			adminPayouts := admin.Group("/payouts")
			{
				adminPayouts.GET("/due", adminHandler.DuePayouts)
			}

			adminCommissions := admin.Group("/commissions")
			{
				adminCommissions.POST("/:id/settle", adminHandler.SettleCommission)
			}

			adminProducts := admin.Group("/products")
			{
				adminProducts.GET("/pending", adminHandler.PendingProducts)
				adminProducts.POST("/:id/approve", adminHandler.ApproveProduct)
				adminProducts.POST("/:id/reject", adminHandler.RejectProduct)
			}

			admin.GET("/revenue", adminHandler.Revenue)
			admin.GET("/proofs/url", uploadHandler.ProofURL)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r, nil
}
