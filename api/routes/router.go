package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutorlink/tutorlink-backend/api/controllers"
	"github.com/tutorlink/tutorlink-backend/api/middleware"
	"github.com/tutorlink/tutorlink-backend/internal/availability"
	"github.com/tutorlink/tutorlink-backend/internal/bookings"
	"github.com/tutorlink/tutorlink-backend/internal/disputes"
	"github.com/tutorlink/tutorlink-backend/internal/notifications"
	"github.com/tutorlink/tutorlink-backend/internal/payments"
	stripewebhook "github.com/tutorlink/tutorlink-backend/internal/webhooks/stripe"
	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	pkgstripe "github.com/tutorlink/tutorlink-backend/pkg/stripe"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Bookings      bookings.Service
	Availability  availability.Service
	Payments      payments.Service
	Disputes      disputes.Service
	Notifications notifications.Service

	StripeGateway pkgstripe.GatewayClient
	WebhookGuard  *stripewebhook.IdempotencyGuard
	Webhooks      *stripewebhook.Service

	Readiness map[string]controllers.Pinger
	Metrics   prometheus.Gatherer
}

// New assembles the full router: health and metrics unauthenticated, the
// stripe webhook verified by signature, everything else behind JWT auth.
func New(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.CORS(cfg.App.CORSOrigins))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Recoverer(logg))

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps.Readiness))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/stripe", controllers.StripeWebhook(deps.StripeGateway, deps.WebhookGuard, deps.Webhooks, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.CreateBooking(deps.Bookings, logg))
			r.Get("/", controllers.ListBookings(deps.Bookings, logg))
			r.Get("/{bookingId}", controllers.GetBooking(deps.Bookings, logg))
			r.Patch("/{bookingId}/status", controllers.TransitionBooking(deps.Bookings, logg))
		})

		r.Get("/tutors/{tutorId}/slots", controllers.GetAvailableSlots(deps.Availability, logg))

		r.Route("/availability/blocks", func(r chi.Router) {
			r.Post("/", controllers.CreateAvailabilityBlock(deps.Availability, logg))
			r.Get("/", controllers.ListAvailabilityBlocks(deps.Availability, logg))
			r.Delete("/{blockId}", controllers.DeleteAvailabilityBlock(deps.Availability, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", controllers.CreatePaymentIntent(deps.Payments, logg))
			r.Post("/confirm", controllers.ConfirmPayment(deps.Payments, logg))
			r.Get("/{paymentId}", controllers.GetPayment(deps.Payments, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleAdmin), logg)).
				Post("/{paymentId}/refund", controllers.RefundPayment(deps.Payments, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", controllers.ListPayouts(deps.Payments, logg))
			r.With(middleware.RequireRole(string(enums.ActorRoleAdmin), logg)).
				Post("/{payoutId}/process", controllers.ProcessPayout(deps.Payments, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", controllers.OpenDispute(deps.Disputes, logg))
			r.Get("/", controllers.ListDisputes(deps.Disputes, logg))
			r.Get("/{disputeId}", controllers.GetDispute(deps.Disputes, logg))
			r.Patch("/{disputeId}", controllers.UpdateDispute(deps.Disputes, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}
