package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/atompoint/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics(h.metrics))
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/api/health", h.Health)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/profile", h.Profile)
			r.With(custommiddleware.RequireAdmin).Post("/reset-password", h.ResetPassword)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.Catalog)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/{id}/purchase", h.Purchase)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin)

				r.Get("/all", h.AllProducts)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
			})
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/buy-credits", h.BuyCredits)
		r.Get("/my-orders", h.MyOrders)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin)

			r.Get("/", h.AllOrders)
			r.Put("/{id}/status", h.SetOrderStatus)
		})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/{id}/notifications", h.Notifications)
		r.Put("/{id}/notifications/{nid}/read", h.MarkNotificationRead)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin)

			r.Get("/", h.ListUsers)
			r.Put("/{id}", h.UpdateUser)
			r.Post("/broadcast", h.Broadcast)
		})
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/payment-details", h.PaymentDetails)
		r.Get("/admin-contact", h.AdminContact)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireAdmin)

			r.Put("/payment-details", h.UpdatePaymentDetails)
			r.Put("/admin-contact", h.UpdateAdminContact)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
