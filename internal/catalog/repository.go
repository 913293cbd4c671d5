package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a conditional decrement matches no
	// row: the remaining stock is smaller than the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ListFilter struct {
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Create(ctx context.Context, p *Product) (int64, error)
	Update(ctx context.Context, p *Product) error
	DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const productColumns = `id, name, description, category, price, stock, discount, image_url, is_active, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.Stock,
		&p.Discount,
		&p.ImageURL,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p Product
	err := scanProduct(r.db.QueryRow(ctx, query, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %d: %w", id, err)
	}

	return &p, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}

	if filter.ActiveOnly {
		query += ` AND is_active = TRUE`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
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
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Product) (int64, error) {
	query := `
		INSERT INTO products (name, description, category, price, stock, discount, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		p.Name, p.Description, p.Category, p.Price, p.Stock, p.Discount, p.ImageURL, p.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to insert product: %w", err)
	}

	p.ID = id
	return id, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, stock = $5,
		    discount = $6, image_url = $7, is_active = $8, updated_at = NOW()
		WHERE id = $9
	`

	cmdTag, err := r.db.Exec(ctx, query,
		p.Name, p.Description, p.Category, p.Price, p.Stock, p.Discount, p.ImageURL, p.IsActive, p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %d: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// DecrementStock issues the conditional stock debit on the caller's
// transaction. The WHERE stock >= quantity clause re-verifies sufficiency
// atomically at the database layer, so two concurrent checkouts can never both
// drive the counter below zero: the second one simply matches no row.
func (r *postgresRepository) DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	cmdTag, err := tx.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for product %d: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}
