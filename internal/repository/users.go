package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// CreateUser создаёт нового пользователя с указанной ролью.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, first_name, last_name, phone)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		u.Email, u.PasswordHash, string(u.Role), u.FirstName, u.LastName, u.Phone,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// CreateSeller создаёт пользователя-продавца и его профиль одной транзакцией.
func (r *PostgresRepository) CreateSeller(ctx context.Context, u *model.User, companyName, phoneNumber string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, first_name, last_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		u.Email, u.PasswordHash, string(model.RoleSeller), u.FirstName, u.LastName,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create seller user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO sellers (user_id, company_name, phone_number) VALUES ($1, $2, $3)`,
		id, companyName, phoneNumber,
	)
	if err != nil {
		return 0, fmt.Errorf("create seller profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, first_name, last_name, COALESCE(phone, ''), primary_address_id, created_at
		 FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.FirstName, &u.LastName, &u.Phone, &u.PrimaryAddressID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, first_name, last_name, COALESCE(phone, ''), primary_address_id, created_at
		 FROM users WHERE id = $1`,
		id,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.FirstName, &u.LastName, &u.Phone, &u.PrimaryAddressID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// UpdateUserProfile обновляет контактные данные пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id int64, firstName, lastName, email, phone string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, email = $3, phone = $4 WHERE id = $5`,
		firstName, lastName, email, phone, id,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetAddressesByUser возвращает адреса пользователя и идентификатор основного адреса.
func (r *PostgresRepository) GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, *int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, address_line1, COALESCE(address_line2, ''), city, state, postal_code, country
		 FROM addresses
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("select addresses: %w", err)
	}
	defer rows.Close()

	var addresses []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.PostalCode, &a.Country); err != nil {
			return nil, nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}

	var primaryID *int64
	err = r.pool.QueryRow(ctx,
		`SELECT primary_address_id FROM users WHERE id = $1`, userID,
	).Scan(&primaryID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("select primary address: %w", err)
	}

	return addresses, primaryID, nil
}

// CreateAddress добавляет новый адрес пользователя.
func (r *PostgresRepository) CreateAddress(ctx context.Context, a *model.Address) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, address_line1, address_line2, city, state, postal_code, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.UserID, a.AddressLine1, a.AddressLine2, a.City, a.State, a.PostalCode, a.Country,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create address: %w", err)
	}
	return id, nil
}

// UpdateAddress обновляет адрес, принадлежащий пользователю.
func (r *PostgresRepository) UpdateAddress(ctx context.Context, a *model.Address) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE addresses
		 SET address_line1 = $1, address_line2 = $2, city = $3, state = $4, postal_code = $5, country = $6
		 WHERE id = $7 AND user_id = $8`,
		a.AddressLine1, a.AddressLine2, a.City, a.State, a.PostalCode, a.Country, a.ID, a.UserID,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// DeleteAddress удаляет адрес, принадлежащий пользователю.
func (r *PostgresRepository) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// SetPrimaryAddress назначает адрес основным для пользователя.
// Адрес должен принадлежать этому пользователю.
func (r *PostgresRepository) SetPrimaryAddress(ctx context.Context, userID, addressID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET primary_address_id = $1
		 WHERE id = $2 AND EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
		addressID, userID,
	)
	if err != nil {
		return fmt.Errorf("set primary address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// GetCartItems возвращает содержимое серверной корзины пользователя.
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ReplaceCart заменяет содержимое корзины пользователя одной транзакцией.
func (r *PostgresRepository) ReplaceCart(ctx context.Context, userID int64, items []model.CartItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)`,
			userID, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetUserStats возвращает сводную статистику по всем пользователям.
// Выручка продавца считается по позициям заказов через товары продавца.
func (r *PostgresRepository) GetUserStats(ctx context.Context) ([]model.UserStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT
		    u.id, u.first_name, u.last_name, u.email, u.role,
		    COALESCE(p.products_count, 0),
		    COALESCE(s.sales_count, 0),
		    COALESCE(o.orders_count, 0),
		    COALESCE(o.total_spent, 0),
		    COALESCE(s.total_earned, 0)
		 FROM users u
		 LEFT JOIN (
		    SELECT seller_id, COUNT(*) AS products_count
		    FROM products
		    GROUP BY seller_id
		 ) p ON u.id = p.seller_id
		 LEFT JOIN (
		    SELECT pr.seller_id,
		           COUNT(DISTINCT oi.order_id) AS sales_count,
		           SUM(oi.price_cents * oi.quantity) AS total_earned
		    FROM order_items oi
		    JOIN products pr ON oi.product_id = pr.id
		    GROUP BY pr.seller_id
		 ) s ON u.id = s.seller_id
		 LEFT JOIN (
		    SELECT customer_id, COUNT(*) AS orders_count, SUM(total_amount_cents) AS total_spent
		    FROM orders
		    GROUP BY customer_id
		 ) o ON u.id = o.customer_id
		 ORDER BY u.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select user stats: %w", err)
	}
	defer rows.Close()

	var res []model.UserStats
	for rows.Next() {
		var (
			st                      model.UserStats
			role                    string
			totalSpent, totalEarned int64
		)
		if err := rows.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &role,
			&st.ProductsCount, &st.SalesCount, &st.OrdersCount, &totalSpent, &totalEarned); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		st.Role = model.Role(role)
		st.TotalSpent = centsToDecimal(totalSpent)
		st.TotalEarned = centsToDecimal(totalEarned)
		res = append(res, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
