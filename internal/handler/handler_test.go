package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	authUser *model.User
	authErr  error

	userResp *model.User
	userErr  error

	statsResp []model.UserStats
	statsErr  error

	addressesResp []model.Address
	primaryID     *int64
	addressesErr  error

	cartResp []model.CartItem
	cartErr  error

	placeOrderID     int64
	placeOrderStatus model.OrderStatus
	placeOrderErr    error
	placedCustomerID int64
	placedLines      []model.CartLine
	placedTotal      float64

	ordersResp     []model.Order
	ordersErr      error
	orderItemsResp []model.OrderItem

	productsResp  []repository.ProductListItem
	productsTotal int
	productsErr   error

	brandsResp []model.Brand
	brandsErr  error
}

func (s *stubService) RegisterCustomer(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) RegisterSeller(ctx context.Context, email, password, firstName, lastName, companyName, phoneNumber string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) AuthenticateStaff(ctx context.Context, email, password string, roles ...model.Role) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.userResp, s.userErr
}

func (s *stubService) UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error {
	return s.userErr
}

func (s *stubService) GetUserStats(ctx context.Context) ([]model.UserStats, error) {
	return s.statsResp, s.statsErr
}

func (s *stubService) GetAddresses(ctx context.Context, userID int64) ([]model.Address, *int64, error) {
	return s.addressesResp, s.primaryID, s.addressesErr
}

func (s *stubService) AddAddress(ctx context.Context, a *model.Address) (int64, error) {
	return 1, s.addressesErr
}

func (s *stubService) UpdateAddress(ctx context.Context, a *model.Address) error {
	return s.addressesErr
}

func (s *stubService) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	return s.addressesErr
}

func (s *stubService) MakePrimaryAddress(ctx context.Context, userID, addressID int64) error {
	return s.addressesErr
}

func (s *stubService) GetCart(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.cartResp, s.cartErr
}

func (s *stubService) SaveCart(ctx context.Context, userID int64, items []model.CartItem) error {
	return s.cartErr
}

func (s *stubService) ListProducts(ctx context.Context, f repository.ProductFilter) ([]repository.ProductListItem, int, error) {
	return s.productsResp, s.productsTotal, s.productsErr
}

func (s *stubService) GetProduct(ctx context.Context, id int64) (*repository.ProductDetails, []model.Product, error) {
	return nil, nil, s.productsErr
}

func (s *stubService) AddProduct(ctx context.Context, p *model.Product) (int64, error) {
	return 1, s.productsErr
}

func (s *stubService) UpdateProduct(ctx context.Context, p *model.Product) error {
	return s.productsErr
}

func (s *stubService) SetProductEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.productsErr
}

func (s *stubService) DeleteProduct(ctx context.Context, id int64) error {
	return s.productsErr
}

func (s *stubService) ListBrands(ctx context.Context) ([]model.Brand, error) {
	return s.brandsResp, s.brandsErr
}

func (s *stubService) AddBrand(ctx context.Context, name string) (*model.Brand, error) {
	return &model.Brand{ID: 1, Name: name, IsActive: true}, s.brandsErr
}

func (s *stubService) SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error) {
	return &model.Brand{ID: id, IsActive: active}, s.brandsErr
}

func (s *stubService) ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error) {
	return nil, 0, nil
}

func (s *stubService) AddCategory(ctx context.Context, name string) (*model.Category, error) {
	return &model.Category{ID: 1, Name: name}, nil
}

func (s *stubService) AddReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	return rv, nil
}

func (s *stubService) ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error) {
	return nil, 0, nil
}

func (s *stubService) PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal float64) (int64, model.OrderStatus, error) {
	s.placedCustomerID = customerID
	s.placedLines = lines
	s.placedTotal = claimedTotal
	return s.placeOrderID, s.placeOrderStatus, s.placeOrderErr
}

func (s *stubService) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return s.orderItemsResp, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, t.TempDir())
}

func authenticatedRequest(h *Handler, req *http.Request, userID int64, role model.Role) *http.Request {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID, role)
	req.AddCookie(rec.Result().Cookies()[0])
	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Email: "user@example.com", Role: model.RoleCustomer},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "user@example.com",
		Password:  "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatal("expected auth cookie to be set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{Email: "user@example.com", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerRequest{Email: "not-an-email", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Email: "user@example.com", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthStatus(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	rec := httptest.NewRecorder()

	h.AuthStatus(rec, req)

	var resp struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsAuthenticated {
		t.Fatal("expected isAuthenticated=false without cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req = authenticatedRequest(h, req, 7, model.RoleAdmin)
	rec = httptest.NewRecorder()

	h.AuthStatus(rec, req)

	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsAuthenticated {
		t.Fatal("expected isAuthenticated=true for admin cookie")
	}
}

func TestAuthStatus_CustomerIsNotPanelUser(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req = authenticatedRequest(h, req, 7, model.RoleCustomer)
	rec := httptest.NewRecorder()

	h.AuthStatus(rec, req)

	var resp struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsAuthenticated {
		t.Fatal("customer cookie must not authenticate the admin panel")
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &stubService{
		placeOrderID:     101,
		placeOrderStatus: model.OrderStatusInitiated,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(map[string]any{
		"products": []map[string]any{
			{"id": 1, "price": 10.50, "quantity": 2, "name": "Widget"},
			{"id": 2, "price": 3.00, "quantity": 1, "name": "Gadget"},
		},
		"total_amount": 24.00,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewReader(body))
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	routed.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp struct {
		Message string `json:"message"`
		OrderID int64  `json:"orderId"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID != 101 {
		t.Errorf("orderId = %d, want 101", resp.OrderID)
	}
	if resp.Message != "Order added successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	if svc.placedCustomerID != 5 {
		t.Errorf("customerID = %d, want 5", svc.placedCustomerID)
	}
	if len(svc.placedLines) != 2 {
		t.Fatalf("lines = %d, want 2", len(svc.placedLines))
	}
	if !svc.placedLines[0].UnitPrice.Equal(decimal.NewFromFloat(10.50)) {
		t.Errorf("line price = %s, want 10.5", svc.placedLines[0].UnitPrice)
	}
	if svc.placedTotal != 24.00 {
		t.Errorf("total = %v, want 24", svc.placedTotal)
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(map[string]any{
		"products":     []map[string]any{{"id": 1, "price": 1.0, "quantity": 1}},
		"total_amount": 1.0,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	routed.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateOrder_MissingTotal(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(map[string]any{
		"products": []map[string]any{{"id": 1, "price": 1.0, "quantity": 1}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewReader(body))
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	routed.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	svc := &stubService{placeOrderErr: service.ErrInvalidInput}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(map[string]any{
		"products":     []map[string]any{},
		"total_amount": 0.0,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewReader(body))
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	routed.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrder_PersistenceError(t *testing.T) {
	svc := &stubService{placeOrderErr: service.ErrOrderPersistence}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(map[string]any{
		"products":     []map[string]any{{"id": 1, "price": 1.0, "quantity": 1}},
		"total_amount": 1.0,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewReader(body))
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateOrder))
	routed.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestGetOrders_CustomerLabels(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		ordersResp: []model.Order{
			{ID: 1, TotalAmount: decimal.NewFromFloat(24.00), Status: model.OrderStatusInitiated, CreatedAt: now},
			{ID: 2, TotalAmount: decimal.NewFromFloat(5.00), Status: model.OrderStatusOutOfStock, CreatedAt: now},
			{ID: 3, TotalAmount: decimal.NewFromFloat(9.99), Status: model.OrderStatusProductNotFound, CreatedAt: now},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders))
	routed.ServeHTTP(rec, req)

	var resp struct {
		Orders []orderResponse `json:"orders"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	want := []string{"processing", "pending", "cancelled"}
	if len(resp.Orders) != len(want) {
		t.Fatalf("orders = %d, want %d", len(resp.Orders), len(want))
	}
	for i, o := range resp.Orders {
		if o.Status != want[i] {
			t.Errorf("order %d status = %q, want %q", o.ID, o.Status, want[i])
		}
	}
}

func TestRouter_AdminRoutesForbiddenForCustomer(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	body, _ := json.Marshal(map[string]any{"name": "Acme"})
	req := httptest.NewRequest(http.MethodPost, "/api/brands", bytes.NewReader(body))
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_SellerRoutesAllowAdmin(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/products/1", nil)
	req = authenticatedRequest(h, req, 2, model.RoleAdmin)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestGetCart(t *testing.T) {
	svc := &stubService{
		cartResp: []model.CartItem{{UserID: 5, ProductID: 3, Quantity: 2}},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.GetCart))
	routed.ServeHTTP(rec, req)

	var resp struct {
		CartItems []cartItemPayload `json:"cartItems"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.CartItems) != 1 || resp.CartItems[0].ProductID != 3 {
		t.Fatalf("unexpected cart items: %+v", resp.CartItems)
	}
}

func TestGetProfile_WithShippingAddress(t *testing.T) {
	primaryID := int64(11)
	svc := &stubService{
		userResp: &model.User{
			ID:               5,
			Email:            "user@example.com",
			FirstName:        "Ivan",
			LastName:         "Petrov",
			PrimaryAddressID: &primaryID,
		},
		addressesResp: []model.Address{
			{ID: 10, City: "Moscow"},
			{ID: 11, City: "Kazan", AddressLine1: "Lenina 1"},
		},
		primaryID: &primaryID,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req = authenticatedRequest(h, req, 5, model.RoleCustomer)
	rec := httptest.NewRecorder()

	routed := h.authMiddleware.Middleware(http.HandlerFunc(h.GetProfile))
	routed.ServeHTTP(rec, req)

	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ShippingAddress == nil {
		t.Fatal("expected shipping address")
	}
	if resp.ShippingAddress.ID != 11 || resp.ShippingAddress.City != "Kazan" {
		t.Fatalf("unexpected shipping address: %+v", resp.ShippingAddress)
	}
}
