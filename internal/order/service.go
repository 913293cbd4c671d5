package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/batikstore/backend/internal/catalog"
)

// priceTolerance absorbs rounding noise when comparing client-submitted
// amounts against server-side arithmetic.
var priceTolerance = decimal.NewFromFloat(0.01)

type OrderItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
}

type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email"`
	CustomerPhone   string             `json:"customer_phone" validate:"required"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	ShippingCity    string             `json:"shipping_city" validate:"required"`
	ShippingPostal  string             `json:"shipping_postal" validate:"required"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	ShippingCost    decimal.Decimal    `json:"shipping_cost"`
	Total           decimal.Decimal    `json:"total"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ProductGetter is the read side of the catalog store used for
// pre-validation.
type ProductGetter interface {
	GetByID(ctx context.Context, id int64) (*catalog.Product, error)
}

// Notifier wakes the notification drain loop after a commit.
type Notifier interface {
	Wake()
}

type Service interface {
	PlaceOrder(ctx context.Context, req *CreateOrderRequest) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus OrderStatus) error
}

type service struct {
	repo     Repository
	products ProductGetter
	notifier Notifier
	validate *validator.Validate
}

func NewService(repo Repository, products ProductGetter, notifier Notifier) Service {
	return &service{
		repo:     repo,
		products: products,
		notifier: notifier,
		validate: validator.New(),
	}
}

// PlaceOrder validates the request against live catalog data, then commits
// order, item snapshots and stock debits atomically. Validation failures and
// stock conflicts leave no partial state; the engine never retries on its
// own, so an ambiguous transient failure cannot double-debit inventory.
func (s *service) PlaceOrder(ctx context.Context, req *CreateOrderRequest) (int64, error) {
	if err := s.validateRequest(req); err != nil {
		log.Warn().Err(err).Msg("service: order request rejected")
		return 0, err
	}

	items, subtotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		log.Warn().Err(err).Msg("service: order items rejected")
		return 0, err
	}

	if subtotal.Sub(req.Subtotal).Abs().GreaterThan(priceTolerance) {
		return 0, newValidationError("subtotal", "subtotal mismatch: calculated %s, declared %s",
			subtotal.StringFixed(2), req.Subtotal.StringFixed(2))
	}
	expectedTotal := req.Subtotal.Add(req.ShippingCost)
	if expectedTotal.Sub(req.Total).Abs().GreaterThan(priceTolerance) {
		return 0, newValidationError("total", "total mismatch: calculated %s, declared %s",
			expectedTotal.StringFixed(2), req.Total.StringFixed(2))
	}

	o := &Order{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingPostal:  req.ShippingPostal,
		Subtotal:        req.Subtotal,
		ShippingCost:    req.ShippingCost,
		Total:           req.Total,
		Status:          StatusPending,
		Items:           items,
	}

	orderID, err := s.repo.Create(ctx, o)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to commit order")
		return 0, err
	}

	log.Info().Int64("order_id", orderID).Str("customer", o.CustomerEmail).Msg("service: order placed")
	s.notifier.Wake()

	return orderID, nil
}

func (s *service) validateRequest(req *CreateOrderRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return newValidationError(fe.Field(), "failed on the %q rule", fe.Tag())
		}
		return fmt.Errorf("service: request validation failed: %w", err)
	}

	if req.ShippingCost.IsNegative() {
		return newValidationError("shipping_cost", "must not be negative")
	}
	return nil
}

// priceItems checks every line item against the live product record: the
// product must exist and be active, the quantity must fit current stock, and
// the submitted unit price must match the discounted price. This guards
// against stale client-side pricing; sufficiency is re-verified by the
// conditional decrement at commit time.
func (s *service) priceItems(ctx context.Context, reqItems []OrderItemRequest) ([]OrderItem, decimal.Decimal, error) {
	items := make([]OrderItem, 0, len(reqItems))
	subtotal := decimal.Zero

	for i, it := range reqItems {
		field := fmt.Sprintf("items[%d]", i)

		product, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, decimal.Zero, newValidationError(field, "product %d not found", it.ProductID)
			}
			return nil, decimal.Zero, fmt.Errorf("service: failed to fetch product %d: %w", it.ProductID, err)
		}
		if !product.IsActive {
			return nil, decimal.Zero, newValidationError(field, "product %s is not available", product.Name)
		}
		if !product.CanFulfillQuantity(it.Quantity) {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   it.Quantity,
				Available:   product.Stock,
			}
		}

		expectedPrice := product.DiscountedPrice()
		if it.Price.Sub(expectedPrice).Abs().GreaterThan(priceTolerance) {
			return nil, decimal.Zero, newValidationError(field, "price mismatch for %s: expected %s, got %s",
				product.Name, expectedPrice.StringFixed(2), it.Price.StringFixed(2))
		}

		itemSubtotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(itemSubtotal)

		items = append(items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    itemSubtotal,
		})
	}

	return items, subtotal, nil
}

func (s *service) GetOrderByID(ctx context.Context, id int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, newValidationError("status", "unknown status %q", filter.Status)
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, 0, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus OrderStatus) error {
	if !newStatus.Valid() {
		return newValidationError("status", "unknown status %q", newStatus)
	}

	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to load order for status update")
		return fmt.Errorf("service: failed to load order: %w", err)
	}
	if current.IsCompleted() {
		return newValidationError("status", "order %d is already delivered", orderID)
	}
	if newStatus == StatusCancelled && !current.CanBeCancelled() {
		return newValidationError("status", "order %d can no longer be cancelled", orderID)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Str("new_status", string(newStatus)).
			Msg("service: failed to update order status")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Int64("order_id", orderID).Str("new_status", string(newStatus)).Msg("service: order status updated")
	s.notifier.Wake()
	return nil
}
