// Package model содержит доменные сущности витрины магазина.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role определяет роль пользователя в системе.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleSeller     Role = "seller"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID               int64
	Email            string
	PasswordHash     []byte
	Role             Role
	FirstName        string
	LastName         string
	Phone            string
	PrimaryAddressID *int64
	CreatedAt        time.Time
}

// Seller содержит профиль продавца, связанный с пользователем.
type Seller struct {
	UserID      int64
	CompanyName string
	PhoneNumber string
}

// Address представляет адрес доставки пользователя.
type Address struct {
	ID           int64
	UserID       int64
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// Category представляет категорию товаров.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Brand представляет бренд товаров.
type Brand struct {
	ID       int64
	Name     string
	IsActive bool
}

// Product представляет товар каталога.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	SellerID      int64
	CategoryID    int64
	BrandID       int64
	ImagePath     string
	IsEnabled     bool
	Rating        float64
	ReviewCount   int
	CreatedAt     time.Time
}

// Review представляет отзыв покупателя о товаре.
type Review struct {
	ID         int64
	ProductID  int64
	UserID     *int64
	Name       string
	Email      string
	ReviewText string
	Rating     int
	CreatedAt  time.Time
}

// CartItem представляет позицию серверной корзины пользователя.
type CartItem struct {
	UserID    int64
	ProductID int64
	Quantity  int
}

// CartLine описывает позицию корзины, присланную клиентом при оформлении заказа.
// Цена здесь заявлена клиентом и не считается достоверной.
type CartLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Name      string
}

// OrderStatus описывает статус заказа, вычисленный при сверке корзины.
type OrderStatus string

const (
	OrderStatusInitiated       OrderStatus = "INITIATED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusPriceMismatch   OrderStatus = "PRICE_MISMATCH"
	OrderStatusOutOfStock      OrderStatus = "OUT_OF_STOCK"
	OrderStatusProductNotFound OrderStatus = "PRODUCT_NOT_FOUND"
	OrderStatusOnDelivery      OrderStatus = "ON_DELIVERY"
)

// customerLabels отображает внутренний статус заказа в метку для покупателя.
var customerLabels = map[OrderStatus]string{
	OrderStatusInitiated:       "processing",
	OrderStatusFailed:          "cancelled",
	OrderStatusPriceMismatch:   "pending",
	OrderStatusOutOfStock:      "pending",
	OrderStatusProductNotFound: "cancelled",
	OrderStatusOnDelivery:      "shipped",
}

// CustomerLabel возвращает метку статуса, показываемую покупателю.
func (s OrderStatus) CustomerLabel() string {
	if label, ok := customerLabels[s]; ok {
		return label
	}
	return "processing"
}

// Order представляет сохранённый заказ покупателя.
type Order struct {
	ID          int64
	CustomerID  int64
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
}

// OrderItem представляет позицию сохранённого заказа.
// Цена позиции — заявленная клиентом на момент оформления.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// UserStats содержит сводную статистику пользователя для административной панели.
type UserStats struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	Role          Role
	ProductsCount int64
	SalesCount    int64
	OrdersCount   int64
	TotalSpent    decimal.Decimal
	TotalEarned   decimal.Decimal
}
