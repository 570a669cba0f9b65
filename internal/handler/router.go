package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/reward-admin/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware административного API.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	// promhttp сжимает ответ сам
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(h.authMiddleware.Middleware)

		r.Get("/categories", h.ListCategories)
		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{id}", h.RenameCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)

		r.Get("/images/{id}", h.GetImage)

		r.Get("/purchases", h.ListPurchases)
		r.Put("/purchases/{id}/status", h.SetPurchaseStatus)

		r.Get("/stats", h.GetStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
