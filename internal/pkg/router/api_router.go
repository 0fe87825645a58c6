package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/LucasPerrin/Crealance/app/controllers"
	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"github.com/LucasPerrin/Crealance/internal/pkg/middleware"
	"github.com/LucasPerrin/Crealance/internal/pkg/session"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// One Stripe gateway instance shared by billing and deliveries
	gw := billing.NewStripeGatewayFromEnv()
	controllers.InitializeBillingController(gw)
	controllers.InitializeDeliveryController(gw)

	api := app.Group("/api", limiter.New(limiter.Config{Max: 120}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Crealance API",
		})
	})

	v1 := api.Group("/v1")

	// Auth
	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Get("/activate", controllers.HandleActivate)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/logout", controllers.HandleLogout)
	auth.Get("/me", middleware.RequireAPISessionAuth, controllers.HandleMe)
	auth.Patch("/me", middleware.RequireAPISessionAuth, controllers.HandleUpdateProfile)

	// Missions and proposals
	missions := v1.Group("/missions")
	missions.Get("/", controllers.HandleListMissions)
	missions.Post("/", middleware.RequireRole(models.ROLE_CREATOR), controllers.HandleCreateMission)
	missions.Get("/mine", middleware.RequireRole(models.ROLE_CREATOR), controllers.HandleMyMissions)
	missions.Get("/:uuid", controllers.HandleGetMission)
	missions.Delete("/:uuid", middleware.RequireRole(models.ROLE_CREATOR), controllers.HandleCancelMission)
	missions.Post("/:uuid/proposals", middleware.RequireRole(models.ROLE_FREELANCER), controllers.HandleSubmitProposal)
	missions.Get("/:uuid/proposals", middleware.RequireAPISessionAuth, controllers.HandleListMissionProposals)
	missions.Post("/:uuid/messages", middleware.RequireAPISessionAuth, controllers.HandleSendMessage)
	missions.Get("/:uuid/messages", middleware.RequireAPISessionAuth, controllers.HandleListMessages)

	proposals := v1.Group("/proposals", middleware.RequireAPISessionAuth)
	proposals.Get("/mine", controllers.HandleMyProposals)
	proposals.Post("/:id/accept", middleware.RequireRole(models.ROLE_CREATOR), controllers.HandleAcceptProposal)

	// Messages
	v1.Get("/messages/unread", middleware.RequireAPISessionAuth, controllers.HandleUnreadCount)

	// Deliveries
	dc := controllers.GetDeliveryController()
	deliveries := v1.Group("/deliveries", middleware.RequireAPISessionAuth)
	deliveries.Get("/", dc.HandleList)
	deliveries.Get("/:uuid", dc.HandleGet)
	deliveries.Post("/:uuid/preview", middleware.RequireRole(models.ROLE_FREELANCER), dc.HandleUploadPreview)
	deliveries.Get("/:uuid/preview", dc.HandleDownloadPreview)
	deliveries.Post("/:uuid/validate", middleware.RequireRole(models.ROLE_CREATOR), dc.HandleValidate)
	deliveries.Post("/:uuid/payment-session", middleware.RequireRole(models.ROLE_CREATOR), dc.HandleCreatePaymentSession)
	deliveries.Post("/:uuid/sync", dc.HandleSyncNow)
	deliveries.Post("/:uuid/final", middleware.RequireRole(models.ROLE_FREELANCER), dc.HandleUploadFinal)
	deliveries.Get("/:uuid/final", dc.HandleDownloadFinal)
	deliveries.Post("/:uuid/confirm", middleware.RequireRole(models.ROLE_CREATOR), dc.HandleConfirm)

	// Billing
	bc := controllers.GetBillingController()
	billingGroup := v1.Group("/billing")
	billingGroup.Post("/checkout", middleware.RequireAPISessionAuth, bc.HandleSubscriptionCheckout)
	billingGroup.Post("/portal", middleware.RequireAPISessionAuth, bc.HandlePortal)
	billingGroup.Post("/sync", middleware.RequireAPISessionAuth, bc.HandleUserSync)
	billingGroup.Get("/subscription", middleware.RequireAPISessionAuth, bc.HandleGetSubscription)
	billingGroup.Post("/webhook", bc.HandleStripeWebhook)
	billingGroup.Post("/reconcile", bc.HandleAdminReconcile)
}
