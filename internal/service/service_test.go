package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	placeOrderID     int64
	placeOrderStatus model.OrderStatus
	placeOrderErr    error

	placeOrderCalls  int
	lastCustomerID   int64
	lastLines        []model.CartLine
	lastClaimedTotal decimal.Decimal

	replacedCart []model.CartItem

	createdCategoryName string
	createdCategorySlug string
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) CreateSeller(ctx context.Context, u *model.User, companyName, phoneNumber string) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error {
	return nil
}

func (s *stubRepo) GetUserStats(ctx context.Context) ([]model.UserStats, error) { return nil, nil }

func (s *stubRepo) GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, *int64, error) {
	return nil, nil, nil
}

func (s *stubRepo) CreateAddress(ctx context.Context, a *model.Address) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateAddress(ctx context.Context, a *model.Address) error { return nil }

func (s *stubRepo) DeleteAddress(ctx context.Context, userID, addressID int64) error { return nil }

func (s *stubRepo) SetPrimaryAddress(ctx context.Context, userID, addressID int64) error { return nil }

func (s *stubRepo) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return nil, nil
}

func (s *stubRepo) ReplaceCart(ctx context.Context, userID int64, items []model.CartItem) error {
	s.replacedCart = items
	return nil
}

func (s *stubRepo) ListProducts(ctx context.Context, f repository.ProductFilter) ([]repository.ProductListItem, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) GetProductDetails(ctx context.Context, id int64) (*repository.ProductDetails, error) {
	return &repository.ProductDetails{}, nil
}

func (s *stubRepo) GetSimilarProducts(ctx context.Context, productID int64, limit int) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateProduct(ctx context.Context, p *model.Product) error { return nil }

func (s *stubRepo) SetProductEnabled(ctx context.Context, id int64, enabled bool) error { return nil }

func (s *stubRepo) DeleteProduct(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) ListBrands(ctx context.Context) ([]model.Brand, error) { return nil, nil }

func (s *stubRepo) CreateBrand(ctx context.Context, name string) (*model.Brand, error) {
	return &model.Brand{Name: name, IsActive: true}, nil
}

func (s *stubRepo) SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error) {
	return &model.Brand{ID: id, IsActive: active}, nil
}

func (s *stubRepo) ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) CreateCategory(ctx context.Context, name, slug string) (*model.Category, error) {
	s.createdCategoryName = name
	s.createdCategorySlug = slug
	return &model.Category{Name: name, Slug: slug}, nil
}

func (s *stubRepo) CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	return rv, nil
}

func (s *stubRepo) ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal decimal.Decimal) (int64, model.OrderStatus, error) {
	s.placeOrderCalls++
	s.lastCustomerID = customerID
	s.lastLines = lines
	s.lastClaimedTotal = claimedTotal
	return s.placeOrderID, s.placeOrderStatus, s.placeOrderErr
}

func (s *stubRepo) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return nil, nil
}

func cartLine(productID int64, quantity int, price string) model.CartLine {
	return model.CartLine{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user@example.com", "pass")
	b := hashPassword("user@example.com", "pass")
	c := hashPassword("user@example.com", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestRegisterCustomer_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo)

	_, err := svc.RegisterCustomer(context.Background(), "user@example.com", "pass", "Ann", "Lee")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user@example.com", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Email:        "user@example.com",
			PasswordHash: hashed,
			Role:         model.RoleCustomer,
		},
	}
	svc := NewService(repo)

	_, err := svc.AuthenticateUser(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_UnknownUser(t *testing.T) {
	repo := &stubRepo{
		getUserErr: repository.ErrUserNotFound,
	}
	svc := NewService(repo)

	_, err := svc.AuthenticateUser(context.Background(), "ghost@example.com", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateStaff_RejectsCustomerRole(t *testing.T) {
	hashed := hashPassword("user@example.com", "pass")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Email:        "user@example.com",
			PasswordHash: hashed,
			Role:         model.RoleCustomer,
		},
	}
	svc := NewService(repo)

	_, err := svc.AuthenticateStaff(context.Background(), "user@example.com", "pass",
		model.RoleAdmin, model.RoleSuperAdmin, model.RoleSeller)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for customer role, got %v", err)
	}
}

func TestPlaceOrder_IdentityRequired(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, _, err := svc.PlaceOrder(context.Background(), 0,
		[]model.CartLine{cartLine(1, 1, "10.00")}, 10)

	if !errors.Is(err, ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
	if repo.placeOrderCalls != 0 {
		t.Fatalf("repository must not be touched without identity, calls = %d", repo.placeOrderCalls)
	}
}

func TestPlaceOrder_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		lines []model.CartLine
		total float64
	}{
		{
			name:  "nan total",
			lines: []model.CartLine{cartLine(1, 1, "10.00")},
			total: math.NaN(),
		},
		{
			name:  "infinite total",
			lines: []model.CartLine{cartLine(1, 1, "10.00")},
			total: math.Inf(1),
		},
		{
			name:  "empty cart",
			lines: nil,
			total: 10,
		},
		{
			name:  "zero quantity",
			lines: []model.CartLine{cartLine(1, 0, "10.00")},
			total: 10,
		},
		{
			name:  "bad product id",
			lines: []model.CartLine{cartLine(0, 1, "10.00")},
			total: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := NewService(repo)

			_, _, err := svc.PlaceOrder(context.Background(), 1, tt.lines, tt.total)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if repo.placeOrderCalls != 0 {
				t.Fatalf("repository must not be touched on invalid input, calls = %d", repo.placeOrderCalls)
			}
		})
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	repo := &stubRepo{
		placeOrderID:     7,
		placeOrderStatus: model.OrderStatusInitiated,
	}
	svc := NewService(repo)

	lines := []model.CartLine{cartLine(1, 2, "10.00")}
	orderID, status, err := svc.PlaceOrder(context.Background(), 42, lines, 20)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if orderID != 7 {
		t.Fatalf("orderID = %d, want 7", orderID)
	}
	if status != model.OrderStatusInitiated {
		t.Fatalf("status = %s, want %s", status, model.OrderStatusInitiated)
	}
	if repo.lastCustomerID != 42 {
		t.Fatalf("customerID = %d, want 42", repo.lastCustomerID)
	}
	if !repo.lastClaimedTotal.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("claimedTotal = %s, want 20", repo.lastClaimedTotal)
	}
	if len(repo.lastLines) != 1 || repo.lastLines[0].ProductID != 1 {
		t.Fatalf("unexpected lines passed to repository: %+v", repo.lastLines)
	}
}

func TestPlaceOrder_PersistenceErrorWrapped(t *testing.T) {
	repo := &stubRepo{
		placeOrderErr: errors.New("commit tx: broken pipe"),
	}
	svc := NewService(repo)

	_, _, err := svc.PlaceOrder(context.Background(), 1,
		[]model.CartLine{cartLine(1, 1, "10.00")}, 10)

	if !errors.Is(err, ErrOrderPersistence) {
		t.Fatalf("expected ErrOrderPersistence, got %v", err)
	}
}

func TestSaveCart_Validation(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	err := svc.SaveCart(context.Background(), 1, []model.CartItem{{ProductID: 1, Quantity: 0}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	err = svc.SaveCart(context.Background(), 1, []model.CartItem{{ProductID: 1, Quantity: 3}})
	if err != nil {
		t.Fatalf("SaveCart error: %v", err)
	}
	if len(repo.replacedCart) != 1 {
		t.Fatalf("cart was not saved: %+v", repo.replacedCart)
	}
}

func TestAddCategory_BuildsSlug(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	c, err := svc.AddCategory(context.Background(), "Home  Appliances")
	if err != nil {
		t.Fatalf("AddCategory error: %v", err)
	}
	if c.Slug != "home-appliances" {
		t.Fatalf("slug = %q, want %q", c.Slug, "home-appliances")
	}
	if repo.createdCategorySlug != "home-appliances" {
		t.Fatalf("repository got slug %q", repo.createdCategorySlug)
	}
}

func TestAddReview_RatingBounds(t *testing.T) {
	svc := NewService(&stubRepo{})

	_, err := svc.AddReview(context.Background(), &model.Review{ProductID: 1, Rating: 6})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for rating 6, got %v", err)
	}

	_, err = svc.AddReview(context.Background(), &model.Review{ProductID: 1, Rating: 0})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for rating 0, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Electronics", "electronics"},
		{"Home & Garden", "home-garden"},
		{"  Trimmed  ", "trimmed"},
		{"Уход за собой", "уход-за-собой"},
	}

	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Fatalf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
