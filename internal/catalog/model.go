package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Discount    decimal.Decimal `json:"discount"`
	ImageURL    string          `json:"image_url,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

var oneHundred = decimal.NewFromInt(100)

// DiscountedPrice is the effective unit price after the percentage discount.
func (p *Product) DiscountedPrice() decimal.Decimal {
	if p.Discount.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(p.Discount.Div(oneHundred))
		return p.Price.Mul(factor)
	}
	return p.Price
}

func (p *Product) IsAvailable() bool {
	return p.IsActive && p.Stock > 0
}

func (p *Product) CanFulfillQuantity(quantity int) bool {
	return p.Stock >= quantity
}
