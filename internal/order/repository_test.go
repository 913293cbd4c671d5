package order_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/batikstore/backend/internal/catalog"
	"github.com/batikstore/backend/internal/notify"
	"github.com/batikstore/backend/internal/order"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	// Database tests only run when DB_HOST_TEST is set; without it the
	// package still passes on its unit tests.
	if os.Getenv("DB_HOST_TEST") == "" {
		os.Exit(m.Run())
	}

	dbPort := os.Getenv("DB_PORT_TEST")
	if dbPort == "" {
		dbPort = "5432"
	}
	dbUser := os.Getenv("DB_USER_TEST")
	if dbUser == "" {
		dbUser = "postgres"
	}
	dbPassword := os.Getenv("DB_PASSWORD_TEST")
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	dbName := os.Getenv("DB_NAME_TEST")
	if dbName == "" {
		dbName = "batikstore_test"
	}
	dbSSLMode := os.Getenv("DB_SSLMODE_TEST")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST_TEST"), dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse test database config")
	}
	poolConfig.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	testDB, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to test database")
	}
	if err := testDB.Ping(ctx); err != nil {
		testDB.Close()
		log.Fatal().Err(err).Msg("Failed to ping test database")
	}

	dsn := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPassword, os.Getenv("DB_HOST_TEST"), dbPort, dbName, dbSSLMode)
	mig, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize test migrations")
	}
	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal().Err(err).Msg("Failed to apply test migrations")
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func requireTestDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("set DB_HOST_TEST to run database tests")
	}
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		`TRUNCATE TABLE notification_outbox, payments, order_items, orders, products RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func seedProduct(t *testing.T, name string, price decimal.Decimal, stock int) int64 {
	t.Helper()
	var id int64
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO products (name, category, price, stock, is_active)
		VALUES ($1, 'shirts', $2, $3, true)
		RETURNING id
	`, name, price, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

func productStock(t *testing.T, id int64) int {
	t.Helper()
	var stock int
	err := testDB.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func outboxCount(t *testing.T, event notify.Event) int {
	t.Helper()
	var n int
	err := testDB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM notification_outbox WHERE event = $1`, string(event)).Scan(&n)
	require.NoError(t, err)
	return n
}

func testOrder(items ...order.OrderItem) *order.Order {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	shipping := decimal.NewFromInt(15000)
	return &order.Order{
		CustomerName:    "Siti Rahayu",
		CustomerEmail:   "siti@example.com",
		CustomerPhone:   "+628123456789",
		ShippingAddress: "Jl. Malioboro 1",
		ShippingCity:    "Yogyakarta",
		ShippingPostal:  "55213",
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		Total:           subtotal.Add(shipping),
		Status:          order.StatusPending,
		Items:           items,
	}
}

func orderItem(productID int64, name string, price decimal.Decimal, qty int) order.OrderItem {
	return order.OrderItem{
		ProductID:   productID,
		ProductName: name,
		Price:       price,
		Quantity:    qty,
		Subtotal:    price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func newRepo() order.Repository {
	return order.NewRepository(testDB, catalog.NewRepository(testDB), notify.NewOutbox(testDB))
}

func TestOrderRepository_Create_CommitsOrderItemsStockAndOutbox(t *testing.T) {
	requireTestDB(t)
	truncateAll(t)

	price := decimal.NewFromInt(100000)
	productID := seedProduct(t, "Batik Parang Shirt", price, 5)
	repo := newRepo()

	o := testOrder(orderItem(productID, "Batik Parang Shirt", price, 2))
	orderID, err := repo.Create(context.Background(), o)

	require.NoError(t, err)
	require.NotZero(t, orderID)
	require.Equal(t, 3, productStock(t, productID))
	require.Equal(t, 1, outboxCount(t, notify.EventOrderCreated))

	stored, err := repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, 2, stored.Items[0].Quantity)
	require.Equal(t, order.StatusPending, stored.Status)
}

func TestOrderRepository_Create_RollsBackWhenStockRunsOut(t *testing.T) {
	requireTestDB(t)
	truncateAll(t)

	price := decimal.NewFromInt(100000)
	okProduct := seedProduct(t, "Batik Parang Shirt", price, 10)
	scarceProduct := seedProduct(t, "Batik Kawung Scarf", price, 2)
	repo := newRepo()

	// The first item debits fine; the second exceeds stock, so the whole
	// order including the first debit must roll back.
	o := testOrder(
		orderItem(okProduct, "Batik Parang Shirt", price, 1),
		orderItem(scarceProduct, "Batik Kawung Scarf", price, 3),
	)
	_, err := repo.Create(context.Background(), o)

	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, scarceProduct, stockErr.ProductID)

	require.Equal(t, 10, productStock(t, okProduct))
	require.Equal(t, 2, productStock(t, scarceProduct))

	var orders int
	require.NoError(t, testDB.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.Zero(t, orders)
	require.Zero(t, outboxCount(t, notify.EventOrderCreated))
}

func TestOrderRepository_Create_ConcurrentCheckoutsDoNotOversell(t *testing.T) {
	requireTestDB(t)
	truncateAll(t)

	price := decimal.NewFromInt(100000)
	productID := seedProduct(t, "Batik Parang Shirt", price, 1)
	repo := newRepo()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := testOrder(orderItem(productID, "Batik Parang Shirt", price, 1))
			_, errs[i] = repo.Create(context.Background(), o)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, catalog.ErrInsufficientStock)
			conflicted++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, conflicted)
	require.Zero(t, productStock(t, productID))

	var orders int
	require.NoError(t, testDB.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.Equal(t, 1, orders)
}

func TestOrderRepository_UpdateStatus_SkipsUnchangedStatus(t *testing.T) {
	requireTestDB(t)
	truncateAll(t)

	price := decimal.NewFromInt(100000)
	productID := seedProduct(t, "Batik Parang Shirt", price, 5)
	repo := newRepo()

	o := testOrder(orderItem(productID, "Batik Parang Shirt", price, 1))
	orderID, err := repo.Create(context.Background(), o)
	require.NoError(t, err)

	// Re-applying the current status must not announce a change.
	require.NoError(t, repo.UpdateStatus(context.Background(), orderID, order.StatusPending))
	require.Zero(t, outboxCount(t, notify.EventOrderStatusChanged))

	require.NoError(t, repo.UpdateStatus(context.Background(), orderID, order.StatusProcessing))
	require.Equal(t, 1, outboxCount(t, notify.EventOrderStatusChanged))

	stored, err := repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, stored.Status)
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	requireTestDB(t)
	truncateAll(t)

	repo := newRepo()
	err := repo.UpdateStatus(context.Background(), 9999, order.StatusShipped)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
