package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

const maxUploadSize = 10 << 20

type productResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	ImagePath     string  `json:"image_path"`
	IsEnabled     bool    `json:"is_enabled"`
	Rating        float64 `json:"rating"`
	ReviewCount   int     `json:"review_count"`
	SellerName    string  `json:"seller_name,omitempty"`
	CategoryName  string  `json:"category_name,omitempty"`
	CategorySlug  string  `json:"category_slug,omitempty"`
	BrandName     string  `json:"brand_name,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.InexactFloat64(),
		StockQuantity: p.StockQuantity,
		ImagePath:     p.ImagePath,
		IsEnabled:     p.IsEnabled,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

// ListProducts возвращает страницу каталога с фильтрами и сортировкой.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := repository.ProductFilter{
		Page:         queryInt(q.Get("page"), 1),
		Limit:        queryInt(q.Get("limit"), 10),
		Search:       q.Get("search"),
		CategorySlug: q.Get("category"),
		SortBy:       q.Get("sortBy"),
		SortOrder:    q.Get("sortOrder"),
	}

	// Публичный каталог показывает только включённые товары. Продавец
	// видит собственные товары целиком, включая выключенные.
	if q.Get("mine") == "true" {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		role, _ := middleware.GetRoleFromContext(r.Context())
		if role == model.RoleSeller {
			f.SellerID = &userID
		}
	} else {
		enabled := true
		f.IsEnabled = &enabled
	}

	products, total, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		pr := toProductResponse(p.Product)
		pr.SellerName = strings.TrimSpace(p.SellerFirstName + " " + p.SellerLastName)
		pr.CategoryName = p.CategoryName
		pr.CategorySlug = p.CategorySlug
		resp = append(resp, pr)
	}

	totalPages := 0
	if f.Limit > 0 {
		totalPages = (total + f.Limit - 1) / f.Limit
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"products":      resp,
		"totalProducts": total,
		"totalPages":    totalPages,
		"currentPage":   f.Page,
	})
}

// GetProduct возвращает карточку товара вместе с похожими товарами категории.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	details, similar, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.Int64("productID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pr := toProductResponse(details.Product)
	pr.CategoryName = details.CategoryName
	pr.BrandName = details.BrandName
	pr.SellerName = details.SellerName

	similarResp := make([]productResponse, 0, len(similar))
	for _, p := range similar {
		similarResp = append(similarResp, toProductResponse(p))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"product":         pr,
		"similarProducts": similarResp,
	})
}

// AddProduct создаёт товар продавца из multipart-формы с изображением.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.productFromForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p.SellerID = userID

	imagePath, err := h.saveUploadedImage(r)
	if err != nil {
		h.logger.Error("save product image error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.ImagePath = imagePath

	id, err := h.service.AddProduct(r.Context(), p)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("add product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Product added successfully",
		"productId": id,
	})
}

// UpdateProduct обновляет товар; изображение заменяется только если прислано новое.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.productFromForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p.ID = id

	imagePath, err := h.saveUploadedImage(r)
	if err != nil {
		h.logger.Error("save product image error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.ImagePath = imagePath

	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("update product error", zap.Error(err), zap.Int64("productID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
	})
}

type productToggleRequest struct {
	IsEnabled bool `json:"is_enabled"`
}

// ToggleProduct включает или выключает показ товара в каталоге.
func (h *Handler) ToggleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req productToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetProductEnabled(r.Context(), id, req.IsEnabled); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("toggle product error", zap.Error(err), zap.Int64("productID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product visibility updated",
	})
}

// DeleteProduct удаляет товар из каталога.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete product error", zap.Error(err), zap.Int64("productID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product deleted successfully",
	})
}

func (h *Handler) productFromForm(r *http.Request) (*model.Product, error) {
	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}

	stock, err := strconv.Atoi(r.FormValue("stock_quantity"))
	if err != nil {
		return nil, fmt.Errorf("parse stock_quantity: %w", err)
	}

	categoryID, err := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse category_id: %w", err)
	}

	brandID, err := strconv.ParseInt(r.FormValue("brand_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse brand_id: %w", err)
	}

	return &model.Product{
		Name:          r.FormValue("name"),
		Description:   r.FormValue("description"),
		Price:         price,
		StockQuantity: stock,
		CategoryID:    categoryID,
		BrandID:       brandID,
	}, nil
}

// saveUploadedImage сохраняет присланный файл в каталог загрузок.
// Возвращает пустой путь, если файл не был прислан.
func (h *Handler) saveUploadedImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("read form file: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))
	dstPath := filepath.Join(h.uploadsDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}

	return "/uploads/" + name, nil
}

type brandResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// ListBrands возвращает все бренды.
func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.service.ListBrands(r.Context())
	if err != nil {
		h.logger.Error("list brands error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]brandResponse, 0, len(brands))
	for _, b := range brands {
		resp = append(resp, brandResponse{ID: b.ID, Name: b.Name, IsActive: b.IsActive})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"brands": resp})
}

type brandRequest struct {
	Name string `json:"name"`
}

// AddBrand создаёт новый бренд.
func (h *Handler) AddBrand(w http.ResponseWriter, r *http.Request) {
	var req brandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.AddBrand(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("add brand error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Brand added successfully",
		"brand":   brandResponse{ID: b.ID, Name: b.Name, IsActive: b.IsActive},
	})
}

type brandToggleRequest struct {
	IsActive bool `json:"is_active"`
}

// ToggleBrand включает или выключает бренд.
func (h *Handler) ToggleBrand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req brandToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.SetBrandActive(r.Context(), id, req.IsActive)
	if err != nil {
		if errors.Is(err, repository.ErrBrandNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("toggle brand error", zap.Error(err), zap.Int64("brandID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Brand updated successfully",
		"brand":   brandResponse{ID: b.ID, Name: b.Name, IsActive: b.IsActive},
	})
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ListCategories возвращает страницу категорий с поиском по названию.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 10)

	categories, total, err := h.service.ListCategories(r.Context(), page, limit, q.Get("search"))
	if err != nil {
		h.logger.Error("list categories error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"categories":  resp,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

type categoryRequest struct {
	Name string `json:"name"`
}

// AddCategory создаёт новую категорию со сгенерированным слагом.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.AddCategory(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("add category error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Category added successfully",
		"category": categoryResponse{ID: c.ID, Name: c.Name, Slug: c.Slug},
	})
}

type reviewRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ReviewText string `json:"review_text"`
	Rating     int    `json:"rating"`
}

type reviewResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ReviewText string `json:"review_text"`
	Rating     int    `json:"rating"`
	CreatedAt  string `json:"created_at"`
}

// AddReview добавляет отзыв о товаре. Авторизация не обязательна:
// для вошедшего пользователя отзыв связывается с его учётной записью.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rv := &model.Review{
		ProductID:  productID,
		Name:       req.Name,
		Email:      req.Email,
		ReviewText: req.ReviewText,
		Rating:     req.Rating,
	}

	if userID, _, ok := h.authMiddleware.FromRequest(r); ok {
		rv.UserID = &userID
	}

	created, err := h.service.AddReview(r.Context(), rv)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("add review error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Review added successfully",
		"review": reviewResponse{
			ID:         created.ID,
			Name:       created.Name,
			ReviewText: created.ReviewText,
			Rating:     created.Rating,
			CreatedAt:  created.CreatedAt.Format(time.RFC3339),
		},
	})
}

// ListReviews возвращает страницу отзывов о товаре.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 5)

	reviews, total, err := h.service.ListReviews(r.Context(), productID, page, limit)
	if err != nil {
		h.logger.Error("list reviews error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		resp = append(resp, reviewResponse{
			ID:         rv.ID,
			Name:       rv.Name,
			ReviewText: rv.ReviewText,
			Rating:     rv.Rating,
			CreatedAt:  rv.CreatedAt.Format(time.RFC3339),
		})
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reviews":      resp,
		"totalReviews": total,
		"totalPages":   totalPages,
		"currentPage":  page,
	})
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}
