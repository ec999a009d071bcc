// Package httpapi — HTTP-поверхность платформы: маршруты chi, конверты с
// зашифрованными полями, CSRF и JWT.
package httpapi

import (
	"context"
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

// Config — зависимости HTTP-сервера.
type Config struct {
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Bookings *service.BookingService
	Payments *service.PaymentService

	PrivateKey   *rsa.PrivateKey
	PublicKeyPEM []byte

	// Лимит попыток входа и регистрации на IP в минуту.
	AuthRatePerMinute int
	// SecureCookies выставляет Secure у cookie csrftoken.
	SecureCookies bool

	Health func(ctx context.Context) error
}

type Server struct {
	cfg     Config
	limiter *ipLimiter
}

func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, limiter: newIPLimiter(cfg.AuthRatePerMinute)}
}

// Routes собирает роутер со всеми маршрутами API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(csrfProtect)

		r.Get("/csrf", s.csrf)
		r.Get("/public-key", s.publicKey)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/auth/signup", s.signup)
			r.Post("/auth/login", s.login)
			r.Post("/auth/password-reset", s.requestPasswordReset)
			r.Post("/auth/password-reset/confirm", s.confirmPasswordReset)
		})

		r.Get("/services", s.listServices)
		r.Get("/workers", s.listWorkers)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.cfg.Accounts))

			r.Get("/profile", s.getProfile)
			r.Put("/profile", s.updateProfile)

			r.Route("/bookings", func(r chi.Router) {
				r.With(requireRole(model.RoleCustomer)).Post("/", s.createBooking)
				r.Get("/", s.listBookings)
				r.Get("/{id}", s.getBooking)
				r.Get("/{id}/events", s.bookingEvents)
				r.Group(func(r chi.Router) {
					r.Use(requireRole(model.RoleCustomer))
					r.Post("/{id}/cancel", s.cancelBooking)
					r.Post("/{id}/payment-method", s.choosePaymentMethod)
					r.Post("/{id}/orders", s.createOrder)
					r.Post("/{id}/orders/verify", s.verifyPayment)
					r.Post("/{id}/rating", s.rateBooking)
					r.Post("/{id}/dispute", s.disputeBooking)
				})
			})

			r.Route("/worker", func(r chi.Router) {
				r.Use(requireRole(model.RoleWorker))
				r.Get("/home", s.workerHome)
				r.Post("/availability", s.setAvailability)
				r.Post("/services", s.addOffer)
			})

			r.Route("/jobs/{id}", func(r chi.Router) {
				r.Use(requireRole(model.RoleWorker))
				r.Post("/accept", s.bookingAction(s.cfg.Bookings.Accept))
				r.Post("/start", s.bookingAction(s.cfg.Bookings.Start))
				r.Post("/receipt", s.bookingAction(s.cfg.Bookings.SendReceipt))
				r.Post("/complete", s.bookingAction(s.cfg.Bookings.Complete))
				r.Post("/cod/confirm", s.bookingAction(s.cfg.Payments.ConfirmCOD))
				r.Post("/tariff", s.addTariffItem)
				r.Put("/tariff/{index}", s.updateTariffItem)
				r.Delete("/tariff/{index}", s.removeTariffItem)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
