package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batikstore/backend/internal/catalog"
	"github.com/batikstore/backend/internal/db"
	"github.com/batikstore/backend/internal/notify"
)

// StockDecrementer is the conditional-decrement primitive of the catalog
// store, joined to the order commit transaction.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error
}

type ListFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, o *Order) (int64, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus OrderStatus) error
}

type postgresRepository struct {
	db     *pgxpool.Pool
	stock  StockDecrementer
	outbox *notify.Outbox
}

func NewRepository(pool *pgxpool.Pool, stock StockDecrementer, outbox *notify.Outbox) Repository {
	return &postgresRepository{db: pool, stock: stock, outbox: outbox}
}

// Create commits the order, its item snapshots and the paired stock debits as
// one transaction. If any conditional decrement matches no row the whole
// commit rolls back: an order must never exist without its full set of stock
// debits, and stock must never be debited without a matching order.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (orderID int64, err error) {
	now := time.Now().UTC()

	err = db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		queryOrder := `
			INSERT INTO orders (customer_name, customer_email, customer_phone,
			                    shipping_address, shipping_city, shipping_postal,
			                    subtotal, shipping_cost, total, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING id
		`
		err := tx.QueryRow(ctx, queryOrder,
			o.CustomerName, o.CustomerEmail, o.CustomerPhone,
			o.ShippingAddress, o.ShippingCity, o.ShippingPostal,
			o.Subtotal, o.ShippingCost, o.Total, string(o.Status), now,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, product_name, price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = orderID

			err = tx.QueryRow(ctx, queryItem,
				orderID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.Subtotal,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("repository: failed to insert order item for order %d: %w", orderID, err)
			}

			if err := r.stock.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, catalog.ErrInsufficientStock) {
					// A concurrent checkout consumed the stock between the
					// pre-check and this debit; roll back everything.
					return &InsufficientStockError{
						ProductID:   item.ProductID,
						ProductName: item.ProductName,
						Requested:   item.Quantity,
						Available:   -1,
					}
				}
				return err
			}
		}

		return r.outbox.Enqueue(ctx, tx, notify.EventOrderCreated, orderID, notify.Payload{
			Order: orderSnapshot(orderID, o),
		})
	})
	if err != nil {
		return 0, err
	}

	o.ID = orderID
	o.CreatedAt = now
	o.UpdatedAt = now
	return orderID, nil
}

func orderSnapshot(id int64, o *Order) notify.OrderSnapshot {
	return notify.OrderSnapshot{
		OrderID:       id,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		Total:         o.Total,
		Status:        string(o.Status),
	}
}

const orderColumns = `id, customer_name, customer_email, customer_phone,
	shipping_address, shipping_city, shipping_postal,
	subtotal, shipping_cost, total, status, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingAddress,
		&o.ShippingCity,
		&o.ShippingPostal,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Total,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %d: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %d: %w", id, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Price, &item.Quantity, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %d: %w", id, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %d: %w", id, err)
	}

	o.Items = items
	return &o, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where := ``
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = ` WHERE status = $1`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[int64]*Order)
	var orderIDs []int64
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, total, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, price, quantity, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Price, &item.Quantity, &item.Subtotal); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, total, nil
}

// UpdateStatus is the direct admin path: a plain status-field update with no
// state-machine coupling, plus a status-changed notification in the same
// transaction.
func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID int64, newStatus OrderStatus) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var snap notify.OrderSnapshot
		err := tx.QueryRow(ctx, `
			SELECT id, customer_name, customer_email, customer_phone, total, status
			FROM orders WHERE id = $1 FOR UPDATE
		`, orderID).Scan(&snap.OrderID, &snap.CustomerName, &snap.CustomerEmail,
			&snap.CustomerPhone, &snap.Total, &snap.Status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("repository: failed to load order %d: %w", orderID, err)
		}

		// Same status means nothing happened: no update, no notification.
		if snap.Status == string(newStatus) {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3
		`, string(newStatus), time.Now().UTC(), orderID)
		if err != nil {
			return fmt.Errorf("repository: failed to update order status %d: %w", orderID, err)
		}

		snap.Status = string(newStatus)
		return r.outbox.Enqueue(ctx, tx, notify.EventOrderStatusChanged, orderID, notify.Payload{Order: snap})
	})
}
