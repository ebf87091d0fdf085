package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
)

// SetupRouter настраивает маршруты API витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты.
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/admin/login", h.AdminLogin)
		r.Post("/seller/register", h.SellerRegister)
		r.Get("/auth", h.AuthStatus)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/products/{id}/reviews", h.ListReviews)
		r.Post("/products/{id}/reviews", h.AddReview)
		r.Get("/brands", h.ListBrands)
		r.Get("/categories", h.ListCategories)

		// Маршруты, требующие входа.
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user", h.GetProfile)
			r.Put("/user", h.UpdateProfile)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.SaveCart)

			r.Get("/addresses", h.GetAddresses)
			r.Post("/addresses", h.AddAddress)
			r.Put("/addresses/{id}", h.UpdateAddress)
			r.Delete("/addresses/{id}", h.DeleteAddress)
			r.Post("/addresses/{id}/primary", h.MakePrimaryAddress)

			r.Post("/order", h.CreateOrder)
			r.Get("/orders", h.GetOrders)

			// Кабинет продавца. Администраторам доступны те же операции.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleSeller, model.RoleAdmin, model.RoleSuperAdmin))

				r.Get("/seller/products", h.ListProducts)
				r.Post("/products", h.AddProduct)
				r.Put("/products/{id}", h.UpdateProduct)
				r.Patch("/products/{id}", h.ToggleProduct)
				r.Delete("/products/{id}", h.DeleteProduct)
			})

			// Административная панель.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))

				r.Post("/brands", h.AddBrand)
				r.Patch("/brands/{id}", h.ToggleBrand)
				r.Post("/categories", h.AddCategory)
				r.Get("/users/stats", h.GetUserStats)
			})
		})
	})

	// Загруженные изображения товаров.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadsDir)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	return r
}
