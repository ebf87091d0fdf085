package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/order"
)

// PlaceOrder сверяет корзину с каталогом и сохраняет заказ одной транзакцией.
//
// Каждая позиция получает вердикт по актуальному снимку каталога, строки
// товаров блокируются на время транзакции. Итоговый статус определяется самым
// серьёзным вердиктом. Заголовок заказа и все позиции записываются всегда,
// включая непрошедшие проверку; в позициях сохраняется заявленная клиентом
// цена. Остатки списываются только для полностью подтверждённого заказа.
// Любая ошибка записи откатывает транзакцию целиком.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal decimal.Decimal) (int64, model.OrderStatus, error) {
	var (
		orderID int64
		status  model.OrderStatus
	)

	err := r.withRetry(ctx, func() error {
		var txErr error
		orderID, status, txErr = r.placeOrderTx(ctx, customerID, lines, claimedTotal)
		return txErr
	})
	if err != nil {
		return 0, "", err
	}

	return orderID, status, nil
}

func (r *PostgresRepository) placeOrderTx(ctx context.Context, customerID int64, lines []model.CartLine, claimedTotal decimal.Decimal) (int64, model.OrderStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Фаза чтения: снимок каталога и вердикт для каждой позиции.
	// remaining учитывает, что одна корзина может содержать один товар
	// в нескольких позициях.
	verdicts := make([]order.Verdict, len(lines))
	remaining := make(map[int64]int)

	for i, line := range lines {
		var (
			priceCents int64
			stock      int
		)
		lookupErr := tx.QueryRow(ctx,
			`SELECT price_cents, stock_quantity FROM products WHERE id = $1 FOR UPDATE`,
			line.ProductID,
		).Scan(&priceCents, &stock)

		var snap order.CatalogSnapshot
		switch {
		case errors.Is(lookupErr, pgx.ErrNoRows):
			snap = order.CatalogSnapshot{ProductID: line.ProductID}
			lookupErr = nil
		case lookupErr != nil:
			if errors.Is(lookupErr, context.Canceled) || errors.Is(lookupErr, context.DeadlineExceeded) {
				return 0, "", fmt.Errorf("fetch product %d: %w", line.ProductID, lookupErr)
			}
			// Ошибка чтения одной позиции не прерывает сверку,
			// а понижает её вердикт. Если Postgres уже перевёл
			// транзакцию в состояние аборта (25P02), последующие
			// запросы тоже завершатся ошибкой и вызов уйдёт в откат
			// с повтором; заказ со статусом FAILED сохраняется только
			// при ошибках, не прервавших транзакцию.
		default:
			if _, seen := remaining[line.ProductID]; !seen {
				remaining[line.ProductID] = stock
			}
			snap = order.CatalogSnapshot{
				ProductID:     line.ProductID,
				Price:         centsToDecimal(priceCents),
				StockQuantity: remaining[line.ProductID],
				Exists:        true,
			}
		}

		verdicts[i] = order.Judge(line, snap, lookupErr)
		if verdicts[i] == order.VerdictOK {
			remaining[line.ProductID] -= line.Quantity
		}
	}

	status := order.DeriveStatus(verdicts)

	// Фаза записи: остатки списываются только для полностью
	// подтверждённого заказа. Строки уже заблокированы, поэтому
	// защитное условие на остаток сработать не должно.
	if status == model.OrderStatusInitiated {
		for _, line := range lines {
			cmdTag, err := tx.Exec(ctx,
				`UPDATE products
				 SET stock_quantity = stock_quantity - $2
				 WHERE id = $1 AND stock_quantity >= $2`,
				line.ProductID, line.Quantity,
			)
			if err != nil {
				return 0, "", fmt.Errorf("decrement stock: %w", err)
			}
			if cmdTag.RowsAffected() == 0 {
				return 0, "", fmt.Errorf("decrement stock for product %d: concurrent update", line.ProductID)
			}
		}
	}

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (customer_id, total_amount_cents, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		customerID, decimalToCents(claimedTotal), string(status),
	).Scan(&orderID)
	if err != nil {
		return 0, "", fmt.Errorf("insert order: %w", err)
	}

	for _, line := range lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			 VALUES ($1, $2, $3, $4)`,
			orderID, line.ProductID, line.Quantity, decimalToCents(line.UnitPrice),
		)
		if err != nil {
			return 0, "", fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, "", fmt.Errorf("commit tx: %w", err)
	}

	return orderID, status, nil
}

// GetOrdersByCustomer возвращает заказы покупателя, новые первыми.
func (r *PostgresRepository) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, total_amount_cents, status, created_at
		 FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			o          model.Order
			totalCents int64
			status     string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &totalCents, &status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.TotalAmount = centsToDecimal(totalCents)
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrderItems возвращает позиции указанного заказа.
func (r *PostgresRepository) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, price_cents
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var (
			item       model.OrderItem
			priceCents int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &priceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Price = centsToDecimal(priceCents)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
