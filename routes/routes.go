package routes

import (
	"food-ordering-api/handlers"
	"food-ordering-api/middleware"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every API route on r. Authentication is resolved
// once for the whole /api tree; groups below only check the outcome.
func SetupRoutes(r *gin.Engine, h *handlers.Handler, limits middleware.RateStore) {
	api := r.Group("/api")
	api.Use(middleware.Authenticate(h.DB, h.JWTSecret))

	read := middleware.RateLimit(limits, middleware.RateRead)
	write := middleware.RateLimit(limits, middleware.RateWrite)
	standard := middleware.RateLimit(limits, middleware.RateStandard)

	// ── Public routes ──────────────────────────────────────────────
	authRoutes := api.Group("/auth", middleware.RateLimit(limits, middleware.RateAuth))
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
	}

	public := api.Group("", read)
	{
		public.GET("/restaurants", h.ListRestaurants)
		public.GET("/restaurants/:id", h.GetRestaurant)
		public.GET("/restaurants/:id/menu", h.GetMenu)
		public.GET("/cities", h.ListCities)
		public.GET("/state-machine", h.GetStateMachineInfo)
	}

	// Orders accept guests as well as signed-in customers.
	api.POST("/orders", write, h.CreateOrder)
	api.PATCH("/orders", write, h.UpdateOrderPayment)
	api.POST("/vouchers/validate", standard, h.ValidateVoucher)
	api.POST("/payments/intents", write, h.CreatePaymentIntent)
	api.POST("/payments/webhook", h.PaymentWebhook)

	// ── Authenticated routes ───────────────────────────────────────
	auth := api.Group("", middleware.RequireAuth(), standard)
	{
		auth.GET("/profile", h.GetProfile)
		auth.PUT("/profile", h.UpdateProfile)
		auth.GET("/orders/:id", middleware.RequireOrderAccess(h.DB), h.GetOrder)

		auth.GET("/notifications", h.ListNotifications)
		auth.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		auth.PUT("/notifications/:id/read", h.MarkNotificationRead)

		auth.GET("/invitations", h.ListMyInvitations)
		auth.PUT("/invitations/:id/accept", h.AcceptInvitation)
	}
	api.GET("/notifications/stream", middleware.RequireAuth(), h.StreamNotifications)
	api.POST("/uploads/:bucket", middleware.RequireAuth(), middleware.RateLimit(limits, middleware.RateUpload), h.Upload)
	api.GET("/uploads/:bucket/:name", middleware.RequireAuth(), middleware.RateLimit(limits, middleware.RateRead), h.GetUpload)

	// ── Customer routes ────────────────────────────────────────────
	customer := api.Group("/customer", middleware.RequireRole(models.RoleCustomer), standard)
	{
		customer.GET("/orders", h.GetMyOrders)
		customer.PUT("/orders/:id/cancel", middleware.RequireOrderAccess(h.DB), h.CancelMyOrder)
		customer.POST("/orders/:id/rate", middleware.RequireOrderAccess(h.DB), h.RateDriver)
		customer.GET("/loyalty", h.GetLoyalty)
	}

	// ── Restaurant routes ──────────────────────────────────────────
	api.POST("/restaurant", middleware.RequireRole(models.RoleRestaurantOwner), write, h.CreateRestaurant)

	restaurant := api.Group("/restaurant", middleware.RequireRestaurantAccess(), standard)
	manager := middleware.RequireRestaurantAccess(models.TeamManager)
	{
		restaurant.GET("", h.GetMyRestaurant)
		restaurant.PUT("", manager, h.UpdateMyRestaurant)

		restaurant.GET("/menu", h.ListMyMenu)
		restaurant.POST("/menu", manager, h.CreateMenuItem)
		restaurant.PUT("/menu/:itemId", manager, h.UpdateMenuItem)
		restaurant.DELETE("/menu/:itemId", manager, h.DeleteMenuItem)

		restaurant.GET("/orders", h.ListRestaurantOrders)
		restaurant.PUT("/orders/:id/status", h.UpdateRestaurantOrderStatus)

		restaurant.GET("/team", h.ListTeam)
		restaurant.POST("/team", manager, h.InviteTeamMember)
		restaurant.DELETE("/team/:memberId", manager, h.RemoveTeamMember)
	}

	// ── Driver routes ──────────────────────────────────────────────
	driverProfile := api.Group("/driver", middleware.RequireRole(models.RoleDriver), standard)
	{
		driverProfile.PUT("/profile", h.UpsertDriverProfile)
	}

	driver := api.Group("/driver", middleware.RequireDriver(), standard)
	{
		driver.GET("/profile", h.GetDriverProfile)
		driver.GET("/orders/available", h.GetAvailableOrders)
		driver.GET("/orders/my-deliveries", h.GetMyDeliveries)
		driver.PUT("/orders/:id/accept", h.AcceptOrder)
		driver.PUT("/orders/:id/pickup", h.PickupOrder)
		driver.PUT("/orders/:id/deliver", h.DeliverOrder)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := api.Group("/admin", middleware.RequireRole(models.RoleSuperAdmin), standard)
	{
		admin.GET("/orders", h.AdminListOrders)
		admin.PUT("/orders/:id/status", h.AdminForceOrderStatus)

		admin.GET("/users", h.AdminListUsers)
		admin.PUT("/users/:id/status", h.AdminSetUserStatus)

		admin.GET("/restaurants", h.AdminListRestaurants)
		admin.PUT("/restaurants/:id/status", h.AdminSetRestaurantStatus)

		admin.PUT("/drivers/:id/verify", h.AdminVerifyDriver)

		admin.GET("/vouchers", h.ListVouchers)
		admin.POST("/vouchers", h.CreateVoucher)
		admin.GET("/vouchers/:id", h.GetVoucher)
		admin.PUT("/vouchers/:id", h.UpdateVoucher)

		admin.POST("/cities", h.CreateCity)
		admin.PUT("/cities/:id", h.UpdateCity)

		admin.GET("/analytics", h.AdminAnalytics)
		admin.GET("/analytics/export", h.AdminExportAnalytics)
	}
}
