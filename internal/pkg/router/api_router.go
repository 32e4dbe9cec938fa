package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/Vahana/app/controllers"
	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/Vahana/internal/pkg/middleware"
	"github.com/ManuelReschke/Vahana/internal/pkg/session"
)

// ApiRouter serves the JSON API under /api/v1.
type ApiRouter struct {
	svc     *controllers.Services
	limiter fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins: env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.CaptchaHeader,
	}), h.limiter)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1", middleware.UserContext(h.svc.Accounts))

	h.registerAccountRoutes(v1)
	h.registerUserRoutes(v1)
	h.registerServiceRoutes(v1.Group("/subscriptions"), models.SERVICE_SUBSCRIPTION)
	h.registerServiceRoutes(v1.Group("/butlers"), models.SERVICE_BUTLER)
	h.registerPaymentRoutes(v1)
	h.registerContentRoutes(v1)
	h.registerAdminRoutes(v1)
}

func (h ApiRouter) registerAccountRoutes(v1 fiber.Router) {
	var captcha middleware.CaptchaVerifier
	if v := hcaptcha.NewFromEnv(); v != nil {
		captcha = v
	}

	ac := controllers.NewAccountController(h.svc)
	accounts := v1.Group("/accounts")
	accounts.Post("/signup", middleware.RequireCaptcha(captcha), ac.HandleSignUp)
	accounts.Post("/login", ac.HandleLogin)
	accounts.Post("/refresh", ac.HandleRefresh)
	accounts.Post("/check-email", ac.HandleCheckEmail)
	accounts.Post("/send-code", middleware.RequireCaptcha(captcha), ac.HandleSendCode)
	accounts.Post("/verify-code", ac.HandleVerifyCode)
	accounts.Post("/reset-password", ac.HandleResetPassword)
	accounts.Post("/portone", middleware.RequireAuth, ac.HandleVerifyIdentity)
	accounts.Get("", middleware.RequireAuth, ac.HandleGet)
	accounts.Put("", middleware.RequireAuth, ac.HandleUpdate)
	accounts.Delete("", middleware.RequireAuth, ac.HandleWithdraw)

	oc := controllers.NewOAuthController(h.svc)
	v1.Get("/auth/:provider", oc.HandleBegin)
	v1.Get("/auth/:provider/callback", oc.HandleCallback)
}

func (h ApiRouter) registerUserRoutes(v1 fiber.Router) {
	uc := controllers.NewUserController(h.svc)
	users := v1.Group("/users", middleware.RequireAuth)
	users.Get("/points", uc.HandlePoints)
	users.Post("/points/coupons/:code", uc.HandleRedeemPointCoupon)
	users.Get("/referrals", uc.HandleReferrals)
	users.Post("/referrals", uc.HandleCreateReferral)
}

// registerServiceRoutes mounts the catalog, coupons, reviews, requests and
// contracts of one service. Static segments go before the :id routes.
func (h ApiRouter) registerServiceRoutes(g fiber.Router, service string) {
	catalog := controllers.NewCatalogController(h.svc, service)
	g.Get("/garages", catalog.HandleGarages)
	g.Get("/cars", catalog.HandleCars)
	g.Get("/cars/:id", catalog.HandleCar)
	g.Get("/models", catalog.HandleModels)

	rc := controllers.NewReviewController(h.svc, service)
	g.Post("/models/request", middleware.RequireAuth, rc.HandleRequestModel)
	g.Get("/models/:id", catalog.HandleModel)
	g.Get("/models/:id/likes", middleware.RequireAuth, rc.HandleModelLiked)
	g.Post("/models/:id/likes", middleware.RequireAuth, rc.HandleLikeModel)
	g.Delete("/models/:id/likes", middleware.RequireAuth, rc.HandleLikeModel)
	g.Get("/models/:id/reviews", rc.HandleList)
	g.Post("/models/:id/reviews", middleware.RequireAuth, rc.HandleCreate)
	g.Get("/reviews", rc.HandleList)
	g.Get("/reviews/:id", rc.HandleGet)
	g.Put("/reviews/:id", middleware.RequireAuth, rc.HandleUpdate)
	g.Delete("/reviews/:id", middleware.RequireAuth, rc.HandleDelete)
	g.Get("/reviews/:id/likes", middleware.RequireAuth, rc.HandleReviewLiked)
	g.Post("/reviews/:id/likes", middleware.RequireAuth, rc.HandleLikeReview)
	g.Delete("/reviews/:id/likes", middleware.RequireAuth, rc.HandleLikeReview)

	cc := controllers.NewCouponController(h.svc, service)
	g.Get("/coupons", middleware.RequireAuth, cc.HandleList)
	g.Get("/coupons/:code", middleware.RequireAuth, cc.HandleLookup)
	g.Post("/coupons/:code", middleware.RequireAuth, cc.HandleRedeem)

	if service == models.SERVICE_SUBSCRIPTION {
		sc := controllers.NewSubscriptionController(h.svc)
		g.Post("/cars/:id/request", middleware.RequireCIVerified, sc.HandleCreateRequest)
		g.Get("/requests", middleware.RequireAuth, sc.HandleListRequests)
		g.Get("/requests/:id", middleware.RequireAuth, sc.HandleGetRequest)
		g.Put("/requests/:id", middleware.RequireAuth, sc.HandleUpdateRequest)
		g.Delete("/requests/:id", middleware.RequireAuth, sc.HandleDeleteRequest)
		g.Get("/contracts/:id", middleware.RequireAuth, sc.HandleGetContract)
		g.Get("", middleware.RequireAuth, sc.HandleListContracts)
		return
	}

	bc := controllers.NewButlerController(h.svc)
	g.Post("/cars/:id/request", middleware.RequireCIVerified, bc.HandleCreateRequest)
	g.Get("/requests", middleware.RequireAuth, bc.HandleListRequests)
	g.Get("/requests/:id", middleware.RequireAuth, bc.HandleGetRequest)
	g.Put("/requests/:id", middleware.RequireAuth, bc.HandleUpdateRequest)
	g.Delete("/requests/:id", middleware.RequireAuth, bc.HandleDeleteRequest)
	g.Get("/contracts/:id", middleware.RequireAuth, bc.HandleGetContract)
	g.Get("", middleware.RequireAuth, bc.HandleListContracts)
}

func (h ApiRouter) registerPaymentRoutes(v1 fiber.Router) {
	bc := controllers.NewBillingController(h.svc)
	payments := v1.Group("/payments")
	// PortOne signs its calls, there is no user behind them
	payments.Post("/webhooks/portone", bc.HandlePortOneWebhook)
	payments.Get("/billings", middleware.RequireAuth, bc.HandleListBillings)
	payments.Post("/billings", middleware.RequireAuth, bc.HandleRegisterBilling)
	payments.Delete("/billings/:id", middleware.RequireAuth, bc.HandleDeactivateBilling)
	payments.Get("", middleware.RequireAuth, bc.HandleListPayments)
}

func (h ApiRouter) registerContentRoutes(v1 fiber.Router) {
	cc := controllers.NewContentController(h.svc)
	services := v1.Group("/services")
	services.Get("/notices", cc.HandleNotices)
	services.Get("/notices/:id", cc.HandleNotice)
	services.Get("/events", cc.HandleEvents)
	services.Get("/events/:id", cc.HandleEvent)
	services.Get("/ads", cc.HandleAds)
	services.Get("/faqs", cc.HandleFAQs)
	services.Get("/terms", cc.HandleTerms)
	services.Get("/privacy-policies", cc.HandlePrivacyPolicies)
}

func (h ApiRouter) registerAdminRoutes(v1 fiber.Router) {
	ac := controllers.NewAdminController(h.svc)
	adminGroup := v1.Group("/admin", middleware.RequireAdmin)
	adminGroup.Post("/coupons", ac.HandleCreateCoupon)
	adminGroup.Post("/point-coupons", ac.HandleCreatePointCoupon)
	adminGroup.Post("/points", ac.HandleGrantPoints)

	adminGroup.Post("/subscriptions", ac.HandleCreateSubscription)
	adminGroup.Put("/subscriptions/:id", ac.HandleUpdateSubscription)
	adminGroup.Delete("/subscriptions/:id", ac.HandleDeleteSubscription)

	adminGroup.Post("/butlers", ac.HandleCreateButler)
	adminGroup.Put("/butlers/:id", ac.HandleUpdateButler)
	adminGroup.Delete("/butlers/:id", ac.HandleDeleteButler)

	adminGroup.Post("/billing/run", ac.HandleRunBilling)
}

// NewApiRouter builds the API router with a Redis backed rate limiter shared
// by all instances.
func NewApiRouter(svc *controllers.Services) *ApiRouter {
	return &ApiRouter{
		svc: svc,
		limiter: limiter.New(limiter.Config{
			Max:          env.GetEnvInt("RATE_LIMIT_MAX", 120),
			Expiration:   time.Minute,
			KeyGenerator: controllers.ClientIP,
			Storage:      session.Storage(session.DBRateLimit),
			LimitReached: func(c *fiber.Ctx) error {
				return controllers.Fail(c, fiber.StatusTooManyRequests, "too many requests", nil)
			},
		}),
	}
}
