// Package order реализует сверку корзины с каталогом и вывод статуса заказа.
package order

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Verdict описывает результат проверки одной позиции корзины.
type Verdict string

const (
	VerdictOK              Verdict = "OK"
	VerdictProductNotFound Verdict = "PRODUCT_NOT_FOUND"
	VerdictPriceMismatch   Verdict = "PRICE_MISMATCH"
	VerdictOutOfStock      Verdict = "OUT_OF_STOCK"
	VerdictLookupFailed    Verdict = "LOOKUP_FAILED"
)

// CatalogSnapshot содержит актуальные цену и остаток товара,
// прочитанные из каталога в момент сверки.
type CatalogSnapshot struct {
	ProductID     int64
	Price         decimal.Decimal
	StockQuantity int
	Exists        bool
}

// Judge проверяет позицию корзины против снимка каталога.
// Порядок проверок фиксирован: ошибка чтения, существование товара,
// совпадение цены, достаточность остатка. Позиция получает ровно один вердикт.
func Judge(line model.CartLine, snap CatalogSnapshot, lookupErr error) Verdict {
	if lookupErr != nil {
		return VerdictLookupFailed
	}
	if !snap.Exists {
		return VerdictProductNotFound
	}
	if !snap.Price.Equal(line.UnitPrice) {
		return VerdictPriceMismatch
	}
	if snap.StockQuantity < line.Quantity {
		return VerdictOutOfStock
	}
	return VerdictOK
}

// statusByVerdict отображает вердикт позиции в статус заказа.
var statusByVerdict = map[Verdict]model.OrderStatus{
	VerdictOK:              model.OrderStatusInitiated,
	VerdictProductNotFound: model.OrderStatusProductNotFound,
	VerdictPriceMismatch:   model.OrderStatusPriceMismatch,
	VerdictOutOfStock:      model.OrderStatusOutOfStock,
	VerdictLookupFailed:    model.OrderStatusFailed,
}

// severity задаёт порядок строгости вердиктов: при нескольких проблемных
// позициях статус заказа определяет самая серьёзная из них,
// а не порядок следования позиций в корзине.
var severity = map[Verdict]int{
	VerdictOK:              0,
	VerdictPriceMismatch:   1,
	VerdictOutOfStock:      2,
	VerdictProductNotFound: 3,
	VerdictLookupFailed:    4,
}

// StatusFor возвращает статус заказа для одного вердикта.
func StatusFor(v Verdict) model.OrderStatus {
	if s, ok := statusByVerdict[v]; ok {
		return s
	}
	return model.OrderStatusFailed
}

// DeriveStatus выводит единый статус заказа из набора вердиктов по позициям.
// Если все позиции прошли проверку, заказ получает статус INITIATED.
func DeriveStatus(verdicts []Verdict) model.OrderStatus {
	worst := VerdictOK
	for _, v := range verdicts {
		if severity[v] > severity[worst] {
			worst = v
		}
	}
	return StatusFor(worst)
}
