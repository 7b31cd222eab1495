package api

import (
	"net/http"

	"trainwise/studio-backend/internal/billing"
	"trainwise/studio-backend/internal/billing/stripe"
	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	coachService service.CoachService,
	clientService service.ClientService,
	stripeClient *stripe.Client,
	reconciler *billing.Reconciler,
) {
	authHandler := NewAuthHandler(authService)
	coachHandler := NewCoachHandler(coachService)
	clientHandler := NewClientHandler(clientService)
	webhookHandler := NewWebhookHandler(stripeClient, reconciler)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Stripe deliveries carry their own signature; they never go through JWT auth.
	router.POST("/api/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := c.Get(ContextUserRoleKey)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})
		protected.POST("/me/onboarding", authHandler.CompleteOnboarding)

		// --- Coach Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			coachGroup.POST("/clients", coachHandler.AddClient)
			coachGroup.GET("/clients", coachHandler.GetClients)
			coachGroup.GET("/clients/:clientId", coachHandler.GetClientDetail)
			coachGroup.POST("/clients/:clientId/comments", coachHandler.CommentOnClient)

			coachGroup.POST("/programs", coachHandler.CreateProgram)
			coachGroup.GET("/programs", coachHandler.GetPrograms)
			coachGroup.PUT("/programs/:programId", coachHandler.UpdateProgram)
			coachGroup.POST("/programs/:programId/save", coachHandler.SaveProgram)
			coachGroup.POST("/programs/:programId/publish", coachHandler.PublishToShop)
			coachGroup.POST("/programs/:programId/withdraw", coachHandler.WithdrawFromShop)

			coachGroup.POST("/clients/:clientId/assignments", coachHandler.AssignProgram)
			coachGroup.POST("/assignments/:assignmentId/cancel", coachHandler.CancelAssignment)
		}

		// --- Client (customer) Routes ---
		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleCustomer))
		{
			clientGroup.GET("/programs", clientHandler.GetMyPrograms)
			clientGroup.GET("/shop", clientHandler.GetShopPrograms)
			clientGroup.GET("/status", clientHandler.GetMyStatus)
			clientGroup.GET("/subscription", clientHandler.GetMySubscription)
			clientGroup.POST("/activities", clientHandler.LogActivity)
			clientGroup.POST("/checkins", clientHandler.CheckIn)
			clientGroup.POST("/checkins/photo-url", clientHandler.RequestCheckInPhotoURL)
		}
	}
}
