package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type orderLinePayload struct {
	ID       int64   `json:"id"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Name     string  `json:"name"`
}

type createOrderRequest struct {
	Products    []orderLinePayload `json:"products"`
	TotalAmount *float64           `json:"total_amount"`
}

// CreateOrder оформляет заказ: сверяет присланную корзину с каталогом
// в одной транзакции и сохраняет заказ с вычисленным статусом.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.TotalAmount == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	lines := make([]model.CartLine, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, model.CartLine{
			ProductID: p.ID,
			Quantity:  p.Quantity,
			UnitPrice: decimal.NewFromFloat(p.Price),
			Name:      p.Name,
		})
	}

	orderID, status, err := h.service.PlaceOrder(r.Context(), userID, lines, *req.TotalAmount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityRequired):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, service.ErrInvalidInput):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("place order error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("order placed",
		zap.Int64("orderID", orderID),
		zap.Int64("userID", userID),
		zap.String("status", string(status)))

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order added successfully",
		"orderId": orderID,
	})
}

type orderItemResponse struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	TotalAmount float64             `json:"total_amount"`
	Status      string              `json:"status"`
	CreatedAt   string              `json:"created_at"`
	Items       []orderItemResponse `json:"items"`
}

// GetOrders возвращает историю заказов текущего пользователя с позициями.
// Статус отдаётся меткой для покупателя, не внутренним значением.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByCustomer(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items, err := h.service.GetOrderItems(r.Context(), o.ID)
		if err != nil {
			h.logger.Error("get order items error", zap.Error(err), zap.Int64("orderID", o.ID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		itemsResp := make([]orderItemResponse, 0, len(items))
		for _, it := range items {
			itemsResp = append(itemsResp, orderItemResponse{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price.InexactFloat64(),
			})
		}

		resp = append(resp, orderResponse{
			ID:          o.ID,
			TotalAmount: o.TotalAmount.InexactFloat64(),
			Status:      o.Status.CustomerLabel(),
			CreatedAt:   o.CreatedAt.Format(time.RFC3339),
			Items:       itemsResp,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}
