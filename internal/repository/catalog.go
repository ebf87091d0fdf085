package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ProductFilter описывает параметры выборки списка товаров.
type ProductFilter struct {
	Page         int
	Limit        int
	Search       string
	SellerID     *int64
	IsEnabled    *bool
	CategorySlug string
	SortBy       string
	SortOrder    string
}

// ProductListItem содержит товар со связанными данными продавца и категории.
type ProductListItem struct {
	model.Product
	SellerFirstName string
	SellerLastName  string
	CategoryName    string
	CategorySlug    string
}

// ProductDetails содержит карточку товара со связанными названиями.
type ProductDetails struct {
	model.Product
	CategoryName string
	BrandName    string
	SellerName   string
}

// Допустимые колонки сортировки списка товаров.
var productSortColumns = map[string]string{
	"created_at":     "p.created_at",
	"name":           "p.name",
	"price":          "p.price_cents",
	"stock_quantity": "p.stock_quantity",
}

// ListProducts возвращает страницу товаров и их общее количество с учётом фильтров.
func (r *PostgresRepository) ListProducts(ctx context.Context, f ProductFilter) ([]ProductListItem, int, error) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", p, p))
	}
	if f.SellerID != nil {
		where = append(where, "p.seller_id = "+arg(*f.SellerID))
	}
	if f.IsEnabled != nil {
		where = append(where, "p.is_enabled = "+arg(*f.IsEnabled))
	}
	if f.CategorySlug != "" {
		where = append(where, "c.slug = "+arg(f.CategorySlug))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	sortColumn, ok := productSortColumns[f.SortBy]
	if !ok {
		sortColumn = "p.created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	countArgs := make([]any, len(args))
	copy(countArgs, args)
	countQuery := fmt.Sprintf(
		`SELECT COUNT(*)
		 FROM products p
		 JOIN categories c ON p.category_id = c.id
		 %s`, whereClause)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT p.id, p.name, COALESCE(p.description, ''), p.price_cents, p.stock_quantity,
		        COALESCE(p.seller_id, 0), COALESCE(p.category_id, 0), COALESCE(p.brand_id, 0),
		        p.image_path, p.is_enabled, p.rating, p.review_count, p.created_at,
		        u.first_name, u.last_name, c.name, c.slug
		 FROM products p
		 JOIN users u ON p.seller_id = u.id
		 JOIN categories c ON p.category_id = c.id
		 %s
		 ORDER BY %s %s
		 LIMIT %s OFFSET %s`,
		whereClause, sortColumn, sortOrder, arg(limit), arg(offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var items []ProductListItem
	for rows.Next() {
		var (
			item       ProductListItem
			priceCents int64
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &priceCents, &item.StockQuantity,
			&item.SellerID, &item.CategoryID, &item.BrandID,
			&item.ImagePath, &item.IsEnabled, &item.Rating, &item.ReviewCount, &item.CreatedAt,
			&item.SellerFirstName, &item.SellerLastName, &item.CategoryName, &item.CategorySlug); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		item.Price = centsToDecimal(priceCents)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return items, total, nil
}

// GetProductDetails возвращает карточку товара со связанными названиями.
func (r *PostgresRepository) GetProductDetails(ctx context.Context, id int64) (*ProductDetails, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT p.id, p.name, COALESCE(p.description, ''), p.price_cents, p.stock_quantity,
		        COALESCE(p.seller_id, 0), COALESCE(p.category_id, 0), COALESCE(p.brand_id, 0),
		        p.image_path, p.is_enabled, p.rating, p.review_count, p.created_at,
		        COALESCE(c.name, ''), COALESCE(b.name, ''), COALESCE(s.company_name, '')
		 FROM products p
		 LEFT JOIN categories c ON p.category_id = c.id
		 LEFT JOIN brands b ON p.brand_id = b.id
		 LEFT JOIN sellers s ON p.seller_id = s.user_id
		 WHERE p.id = $1`,
		id,
	)

	var (
		d          ProductDetails
		priceCents int64
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &priceCents, &d.StockQuantity,
		&d.SellerID, &d.CategoryID, &d.BrandID,
		&d.ImagePath, &d.IsEnabled, &d.Rating, &d.ReviewCount, &d.CreatedAt,
		&d.CategoryName, &d.BrandName, &d.SellerName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	d.Price = centsToDecimal(priceCents)

	return &d, nil
}

// GetSimilarProducts возвращает товары из той же категории, что и указанный.
func (r *PostgresRepository) GetSimilarProducts(ctx context.Context, productID int64, limit int) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price_cents, image_path, rating, review_count
		 FROM products
		 WHERE category_id = (SELECT category_id FROM products WHERE id = $1)
		   AND id != $1
		 LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select similar products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var (
			p          model.Product
			priceCents int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &priceCents, &p.ImagePath, &p.Rating, &p.ReviewCount); err != nil {
			return nil, fmt.Errorf("scan similar product: %w", err)
		}
		p.Price = centsToDecimal(priceCents)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// CreateProduct добавляет новый товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, price_cents, description, stock_quantity, seller_id, category_id, brand_id, image_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.Name, decimalToCents(p.Price), p.Description, p.StockQuantity, p.SellerID, p.CategoryID, p.BrandID, p.ImagePath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct обновляет данные товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	// Пустой путь изображения означает, что новый файл не присылали.
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $1, price_cents = $2, description = $3, stock_quantity = $4, category_id = $5, brand_id = $6,
		     image_path = COALESCE(NULLIF($7, ''), image_path)
		 WHERE id = $8`,
		p.Name, decimalToCents(p.Price), p.Description, p.StockQuantity, p.CategoryID, p.BrandID, p.ImagePath, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetProductEnabled включает или выключает показ товара на витрине.
func (r *PostgresRepository) SetProductEnabled(ctx context.Context, id int64, enabled bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_enabled = $1 WHERE id = $2`,
		enabled, id,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct удаляет товар из каталога.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListBrands возвращает все бренды по алфавиту.
func (r *PostgresRepository) ListBrands(ctx context.Context) ([]model.Brand, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_active FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select brands: %w", err)
	}
	defer rows.Close()

	var brands []model.Brand
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.IsActive); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return brands, nil
}

// CreateBrand добавляет новый бренд.
func (r *PostgresRepository) CreateBrand(ctx context.Context, name string) (*model.Brand, error) {
	var b model.Brand
	err := r.pool.QueryRow(ctx,
		`INSERT INTO brands (name, is_active) VALUES ($1, TRUE) RETURNING id, name, is_active`,
		name,
	).Scan(&b.ID, &b.Name, &b.IsActive)
	if err != nil {
		return nil, fmt.Errorf("create brand: %w", err)
	}
	return &b, nil
}

// SetBrandActive включает или выключает бренд.
func (r *PostgresRepository) SetBrandActive(ctx context.Context, id int64, active bool) (*model.Brand, error) {
	var b model.Brand
	err := r.pool.QueryRow(ctx,
		`UPDATE brands SET is_active = $1 WHERE id = $2 RETURNING id, name, is_active`,
		active, id,
	).Scan(&b.ID, &b.Name, &b.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBrandNotFound
		}
		return nil, fmt.Errorf("update brand: %w", err)
	}
	return &b, nil
}

// ListCategories возвращает страницу категорий и их общее количество.
func (r *PostgresRepository) ListCategories(ctx context.Context, page, limit int, search string) ([]model.Category, int, error) {
	if limit <= 0 {
		limit = 12
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	var (
		rows  pgx.Rows
		total int
		err   error
	)

	if search != "" {
		pattern := "%" + search + "%"
		if err = r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM categories WHERE name ILIKE $1`, pattern,
		).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count categories: %w", err)
		}
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, slug FROM categories WHERE name ILIKE $3 ORDER BY name ASC LIMIT $1 OFFSET $2`,
			limit, offset, pattern,
		)
	} else {
		if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count categories: %w", err)
		}
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, slug FROM categories ORDER BY name ASC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, 0, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return categories, total, nil
}

// CreateCategory добавляет новую категорию.
func (r *PostgresRepository) CreateCategory(ctx context.Context, name, slug string) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id, name, slug`,
		name, slug,
	).Scan(&c.ID, &c.Name, &c.Slug)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

// CreateReview сохраняет отзыв о товаре и обновляет его агрегированный рейтинг.
func (r *PostgresRepository) CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var saved model.Review
	err = tx.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, name, email, review_text, rating)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, product_id, user_id, name, email, review_text, rating, created_at`,
		rv.ProductID, rv.UserID, rv.Name, rv.Email, rv.ReviewText, rv.Rating,
	).Scan(&saved.ID, &saved.ProductID, &saved.UserID, &saved.Name, &saved.Email, &saved.ReviewText, &saved.Rating, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE products
		 SET rating = (SELECT AVG(rating) FROM reviews WHERE product_id = $1),
		     review_count = (SELECT COUNT(*) FROM reviews WHERE product_id = $1)
		 WHERE id = $1`,
		rv.ProductID,
	)
	if err != nil {
		return nil, fmt.Errorf("update product rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &saved, nil
}

// ListReviews возвращает страницу отзывов на товар и их общее количество.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID int64, page, limit int) ([]model.Review, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, name, email, review_text, rating, created_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		productID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Name, &rv.Email, &rv.ReviewText, &rv.Rating, &rv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	return reviews, total, nil
}
