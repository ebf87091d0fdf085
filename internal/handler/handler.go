// Package handler содержит HTTP-обработчики API сервиса витрины.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterCustomer(ctx context.Context, email, password, firstName, lastName string) (*model.User, error)
	RegisterSeller(ctx context.Context, email, password, firstName, lastName, companyName, phoneNumber string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	AuthenticateStaff(ctx context.Context, email, password string, roles ...model.Role) (*model.User, error)

	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error
	GetUserStats(ctx context.Context) ([]model.UserStats, error)

	GetAddresses(ctx context.Context, userID int64) ([]model.Address, *int64, error)
	AddAddress(ctx context.Context, a *model.Address) (int64, error)
	UpdateAddress(ctx context.Context, a *model.Address) error
	DeleteAddress(ctx context.Context, userID, addressID int64) error
	MakePrimaryAddress(ctx context.Context, userID, addressID int64) error

	GetCart(ctx context.Context, userID int64) ([]model.CartItem, error)
	SaveCart(ctx context.Context, userID int64, items []model.CartItem) error

	ListProducts(ctx context.Context, f repository.ProductFilter) ([]repository.ProductListItem, int, error)
	GetProduct(ctx context.Context, id int64) (*repository.ProductDetails, []model.Product, error)
	AddProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	SetProductEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteProduct(ctx context.Context, id int64) error

	ListBrands(ctx context.Context) ([]model.Brand, error)
	AddBrand(ctx context.Context, name string) (*model.Brand, error)
	SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error)
	ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error)
	AddCategory(ctx context.Context, name string) (*model.Category, error)

	AddReview(ctx context.Context, rv *model.Review) (*model.Review, error)
	ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error)

	PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal float64) (int64, model.OrderStatus, error)
	GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}

// Handler реализует HTTP-обработчики API сервиса витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	uploadsDir     string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, uploadsDir string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		uploadsDir:     uploadsDir,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}
