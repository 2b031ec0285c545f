package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/onegreenvn/crm-campaign-backend/internal/handlers"
	"github.com/onegreenvn/crm-campaign-backend/internal/middleware"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
	"github.com/onegreenvn/crm-campaign-backend/internal/services/auth"
	"github.com/onegreenvn/crm-campaign-backend/internal/services/excel"
)

// Services are the wired application services the routes dispatch to
type Services struct {
	Auth     *auth.AuthService
	Audience *services.AudienceService
	Campaign *services.CampaignService
	History  *services.HistoryService
	Delivery *services.DeliveryService
	Vendor   *services.VendorService
	Customer *services.CustomerService
	Order    *services.OrderService
	Excel    *excel.Service
	SSEHub   *services.SSEHub
}

// SetupRouter configures the Gin router. Every route except auth, the vendor
// stand-in and the delivery receipt webhook requires a bearer token.
func SetupRouter(svc Services, webhookSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.WebhookSecretHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	bearerTokenMiddleware := middleware.NewBearerTokenMiddleware(svc.Auth)

	authHandler := handlers.NewAuthHandler(svc.Auth)
	campaignHandler := handlers.NewCampaignHandler(svc.Campaign, svc.Audience, svc.History, svc.Excel, svc.SSEHub)
	deliveryHandler := handlers.NewDeliveryHandler(svc.Delivery, svc.Vendor)
	customerHandler := handlers.NewCustomerHandler(svc.Customer, svc.Order, svc.Audience)
	orderHandler := handlers.NewOrderHandler(svc.Order)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	api := r.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.RefreshToken)
		}

		// Vendor-facing routes
		api.POST("/delivery-receipt", middleware.WebhookSecret(webhookSecret), deliveryHandler.DeliveryReceipt)
		api.POST("/vendor/send", deliveryHandler.VendorSend)

		protected := api.Group("")
		protected.Use(bearerTokenMiddleware.BearerTokenAuthMiddleware())
		{
			authProtected := protected.Group("/auth")
			{
				authProtected.POST("/logout", authHandler.Logout)
				authProtected.GET("/profile", authHandler.GetProfile)
				authProtected.POST("/change-password", authHandler.ChangePassword)
			}

			campaigns := protected.Group("/campaigns")
			{
				campaigns.POST("", campaignHandler.CreateCampaign)
				campaigns.POST("/audience/preview", campaignHandler.PreviewAudience)
				campaigns.GET("/history", campaignHandler.GetHistory)
				campaigns.GET("/history/export", campaignHandler.ExportHistory)
				campaigns.GET("/stream", campaignHandler.StreamDeliveryStatus)
			}

			customers := protected.Group("/customers")
			{
				customers.POST("", customerHandler.CreateCustomer)
				customers.GET("", customerHandler.ListCustomers)
				customers.POST("/bulk", customerHandler.BulkCreateCustomers)
				customers.POST("/search", customerHandler.SearchCustomers)
				customers.POST("/recompute-segments", customerHandler.RecomputeSegments)
				customers.GET("/stats", customerHandler.CustomerStats)
				customers.GET("/:id", customerHandler.GetCustomer)
				customers.PUT("/:id", customerHandler.UpdateCustomer)
				customers.DELETE("/:id", customerHandler.DeleteCustomer)
				customers.GET("/:id/orders", customerHandler.GetCustomerOrders)
			}

			orders := protected.Group("/orders")
			{
				orders.POST("", orderHandler.CreateOrder)
				orders.GET("", orderHandler.ListOrders)
				orders.POST("/bulk", orderHandler.BulkCreateOrders)
				orders.GET("/stats", orderHandler.OrderStats)
				orders.GET("/:id", orderHandler.GetOrder)
				orders.PUT("/:id", orderHandler.UpdateOrder)
				orders.DELETE("/:id", orderHandler.DeleteOrder)
			}
		}
	}

	return r
}
