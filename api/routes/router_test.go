package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/internal/bookings"
	pkgauth "github.com/tutorlink/tutorlink-backend/pkg/auth"
	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
)

type routerBookingService struct {
	listed bool
}

func (f *routerBookingService) CreateBooking(ctx context.Context, input bookings.CreateBookingInput) (*models.Booking, error) {
	return &models.Booking{ID: uuid.New()}, nil
}

func (f *routerBookingService) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role enums.ActorRole) (*models.Booking, error) {
	return &models.Booking{ID: bookingID}, nil
}

func (f *routerBookingService) ListBookings(ctx context.Context, input bookings.ListInput) ([]models.Booking, error) {
	f.listed = true
	return []models.Booking{}, nil
}

func (f *routerBookingService) TransitionStatus(ctx context.Context, input bookings.TransitionInput) (*models.Booking, error) {
	return &models.Booking{ID: input.BookingID}, nil
}

func (f *routerBookingService) ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, actor *outbox.ActorRef) (*models.Booking, error) {
	return nil, nil
}

func (f *routerBookingService) MarkRefunded(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Booking, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "tutorlink-test",
			ExpirationMinutes: 5,
		},
	}
}

func testRouter(svc bookings.Service) http.Handler {
	return New(Deps{
		Config:   testConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.ErrorLevel}),
		Bookings: svc,
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthIsUnauthenticated(t *testing.T) {
	router := testRouter(&routerBookingService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterRejectsMissingToken(t *testing.T) {
	svc := &routerBookingService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if svc.listed {
		t.Fatal("handler ran without credentials")
	}
}

func TestRouterRoutesAuthenticatedRequest(t *testing.T) {
	svc := &routerBookingService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorRoleStudent))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !svc.listed {
		t.Fatal("expected the list handler to run")
	}
}

func TestRouterGuardsAdminRoutes(t *testing.T) {
	router := testRouter(&routerBookingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/"+uuid.New().String()+"/process", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorRoleTutor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}
