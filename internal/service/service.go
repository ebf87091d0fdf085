// Package service реализует бизнес-логику сервиса витрины.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput возвращается при некорректных входных данных оформления заказа.
	ErrInvalidInput = errors.New("invalid input data")
	// ErrIdentityRequired возвращается, если заказ оформляется без аутентифицированного покупателя.
	ErrIdentityRequired = errors.New("identity required")
	// ErrOrderPersistence возвращается при сбое транзакции сохранения заказа.
	// После отката частичное состояние не сохраняется, повтор безопасен.
	ErrOrderPersistence = errors.New("order persistence failure")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	CreateSeller(ctx context.Context, u *model.User, companyName, phoneNumber string) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error
	GetUserStats(ctx context.Context) ([]model.UserStats, error)

	GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, *int64, error)
	CreateAddress(ctx context.Context, a *model.Address) (int64, error)
	UpdateAddress(ctx context.Context, a *model.Address) error
	DeleteAddress(ctx context.Context, userID, addressID int64) error
	SetPrimaryAddress(ctx context.Context, userID, addressID int64) error

	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	ReplaceCart(ctx context.Context, userID int64, items []model.CartItem) error

	ListProducts(ctx context.Context, f repository.ProductFilter) ([]repository.ProductListItem, int, error)
	GetProductDetails(ctx context.Context, id int64) (*repository.ProductDetails, error)
	GetSimilarProducts(ctx context.Context, productID int64, limit int) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	SetProductEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteProduct(ctx context.Context, id int64) error

	ListBrands(ctx context.Context) ([]model.Brand, error)
	CreateBrand(ctx context.Context, name string) (*model.Brand, error)
	SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error)
	ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error)
	CreateCategory(ctx context.Context, name, slug string) (*model.Category, error)

	CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error)
	ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error)

	PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal decimal.Decimal) (int64, model.OrderStatus, error)
	GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}

// Service содержит бизнес-логику сервиса витрины.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterCustomer регистрирует нового покупателя.
func (s *Service) RegisterCustomer(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	u := &model.User{
		Email:        email,
		PasswordHash: hashPassword(email, password),
		Role:         model.RoleCustomer,
		FirstName:    firstName,
		LastName:     lastName,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id

	return u, nil
}

// RegisterSeller регистрирует продавца вместе с профилем компании.
func (s *Service) RegisterSeller(ctx context.Context, email, password, firstName, lastName, companyName, phoneNumber string) (*model.User, error) {
	u := &model.User{
		Email:        email,
		PasswordHash: hashPassword(email, password),
		Role:         model.RoleSeller,
		FirstName:    firstName,
		LastName:     lastName,
	}

	id, err := s.repo.CreateSeller(ctx, u, companyName, phoneNumber)
	if err != nil {
		return nil, err
	}
	u.ID = id

	return u, nil
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// AuthenticateStaff проверяет учётные данные и допускает только указанные роли.
// Используется входом в административную панель и кабинет продавца.
func (s *Service) AuthenticateStaff(ctx context.Context, email, password string, roles ...model.Role) (*model.User, error) {
	u, err := s.AuthenticateUser(ctx, email, password)
	if err != nil {
		return nil, err
	}

	for _, role := range roles {
		if u.Role == role {
			return u, nil
		}
	}

	return nil, ErrInvalidCredentials
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateUserProfile обновляет контактные данные пользователя.
func (s *Service) UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error {
	return s.repo.UpdateUserProfile(ctx, id, firstName, lastName, email, phone)
}

// GetUserStats возвращает сводную статистику пользователей.
func (s *Service) GetUserStats(ctx context.Context) ([]model.UserStats, error) {
	return s.repo.GetUserStats(ctx)
}

// GetAddresses возвращает адреса пользователя и идентификатор основного адреса.
func (s *Service) GetAddresses(ctx context.Context, userID int64) ([]model.Address, *int64, error) {
	return s.repo.GetAddressesByUser(ctx, userID)
}

// AddAddress добавляет адрес пользователю.
func (s *Service) AddAddress(ctx context.Context, a *model.Address) (int64, error) {
	return s.repo.CreateAddress(ctx, a)
}

// UpdateAddress обновляет адрес пользователя.
func (s *Service) UpdateAddress(ctx context.Context, a *model.Address) error {
	return s.repo.UpdateAddress(ctx, a)
}

// DeleteAddress удаляет адрес пользователя.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	return s.repo.DeleteAddress(ctx, userID, addressID)
}

// MakePrimaryAddress назначает адрес основным.
func (s *Service) MakePrimaryAddress(ctx context.Context, userID, addressID int64) error {
	return s.repo.SetPrimaryAddress(ctx, userID, addressID)
}

// GetCart возвращает серверную корзину пользователя.
func (s *Service) GetCart(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.repo.GetCartItems(ctx, userID)
}

// SaveCart заменяет серверную корзину пользователя.
func (s *Service) SaveCart(ctx context.Context, userID int64, items []model.CartItem) error {
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return ErrInvalidInput
		}
	}
	return s.repo.ReplaceCart(ctx, userID, items)
}

// ListProducts возвращает страницу товаров по фильтру.
func (s *Service) ListProducts(ctx context.Context, f repository.ProductFilter) ([]repository.ProductListItem, int, error) {
	return s.repo.ListProducts(ctx, f)
}

// GetProduct возвращает карточку товара и похожие товары из той же категории.
func (s *Service) GetProduct(ctx context.Context, id int64) (*repository.ProductDetails, []model.Product, error) {
	details, err := s.repo.GetProductDetails(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	similar, err := s.repo.GetSimilarProducts(ctx, id, 4)
	if err != nil {
		return nil, nil, err
	}

	return details, similar, nil
}

// AddProduct добавляет товар в каталог.
func (s *Service) AddProduct(ctx context.Context, p *model.Product) (int64, error) {
	if p.Name == "" || p.Price.IsNegative() || p.StockQuantity < 0 {
		return 0, ErrInvalidInput
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct обновляет данные товара.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	if p.Name == "" || p.Price.IsNegative() || p.StockQuantity < 0 {
		return ErrInvalidInput
	}
	return s.repo.UpdateProduct(ctx, p)
}

// SetProductEnabled включает или выключает показ товара.
func (s *Service) SetProductEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.repo.SetProductEnabled(ctx, id, enabled)
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// ListBrands возвращает все бренды.
func (s *Service) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.repo.ListBrands(ctx)
}

// AddBrand добавляет бренд.
func (s *Service) AddBrand(ctx context.Context, name string) (*model.Brand, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.CreateBrand(ctx, name)
}

// SetBrandActive включает или выключает бренд.
func (s *Service) SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error) {
	return s.repo.SetBrandActive(ctx, id, active)
}

// ListCategories возвращает страницу категорий.
func (s *Service) ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error) {
	return s.repo.ListCategories(ctx, page, limit, search)
}

// AddCategory добавляет категорию; slug строится из названия.
func (s *Service) AddCategory(ctx context.Context, name string) (*model.Category, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.CreateCategory(ctx, name, slugify(name))
}

// AddReview сохраняет отзыв о товаре.
func (s *Service) AddReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	if rv.ProductID <= 0 || rv.Rating < 1 || rv.Rating > 5 {
		return nil, ErrInvalidInput
	}
	return s.repo.CreateReview(ctx, rv)
}

// ListReviews возвращает страницу отзывов на товар.
func (s *Service) ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error) {
	return s.repo.ListReviews(ctx, productID, page, limit)
}

// PlaceOrder проверяет входные данные оформления заказа и запускает сверку
// корзины с каталогом. Возвращает идентификатор и статус созданного заказа.
//
// Сохраняемая сумма заказа и цены позиций — заявленные клиентом значения;
// каталог при сверке влияет только на статус.
func (s *Service) PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal float64) (int64, model.OrderStatus, error) {
	if customerID <= 0 {
		return 0, "", ErrIdentityRequired
	}

	if math.IsNaN(claimedTotal) || math.IsInf(claimedTotal, 0) {
		return 0, "", fmt.Errorf("%w: total amount is not a finite number", ErrInvalidInput)
	}

	if len(lines) == 0 {
		return 0, "", fmt.Errorf("%w: empty cart", ErrInvalidInput)
	}

	for _, line := range lines {
		if line.ProductID <= 0 {
			return 0, "", fmt.Errorf("%w: bad product id", ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return 0, "", fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
	}

	orderID, status, err := s.repo.PlaceOrder(ctx, customerID, lines, decimal.NewFromFloat(claimedTotal))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrOrderPersistence, err)
	}

	return orderID, status, nil
}

// GetOrdersByCustomer возвращает историю заказов покупателя.
func (s *Service) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, customerID)
}

// GetOrderItems возвращает позиции заказа.
func (s *Service) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return s.repo.GetOrderItems(ctx, orderID)
}
