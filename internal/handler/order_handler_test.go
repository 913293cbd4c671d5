package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/batikstore/backend/internal/handler"
	"github.com/batikstore/backend/internal/order"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, req *order.CreateOrderRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderService) GetOrderByID(ctx context.Context, id int64) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus order.OrderStatus) error {
	args := m.Called(ctx, orderID, newStatus)
	return args.Error(0)
}

func orderRouter(svc order.Service) chi.Router {
	router := chi.NewRouter()
	handler.NewOrderHandler(svc).RegisterRoutes(router)
	return router
}

const createOrderBody = `{
	"customer_name": "Siti Rahayu",
	"customer_email": "siti@example.com",
	"customer_phone": "+628123456789",
	"shipping_address": "Jl. Malioboro 10",
	"shipping_city": "Yogyakarta",
	"shipping_postal": "55213",
	"subtotal": "200000",
	"shipping_cost": "15000",
	"total": "215000",
	"items": [{"product_id": 1, "price": "100000", "quantity": 2}]
}`

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	created := &order.Order{ID: 42, Status: order.StatusPending, Total: decimal.NewFromInt(215000)}

	mockSvc.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*order.CreateOrderRequest")).
		Return(int64(42), nil).
		Once()
	mockSvc.On("GetOrderByID", mock.Anything, int64(42)).
		Return(created, nil).
		Once()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createOrderBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(42), got.ID)
	mockSvc.AssertExpectations(t)
}

func TestOrderHandler_CreateOrder_ValidationError(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	mockSvc.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*order.CreateOrderRequest")).
		Return(int64(0), &order.ValidationError{Field: "customer_email", Message: "failed on the \"email\" rule"}).
		Once()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createOrderBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandler_CreateOrder_InsufficientStock(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	stockErr := &order.InsufficientStockError{ProductID: 1, ProductName: "Batik Parang Shirt", Requested: 2, Available: 1}
	mockSvc.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*order.CreateOrderRequest")).
		Return(int64(0), stockErr).
		Once()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createOrderBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Batik Parang Shirt")
}

func TestOrderHandler_CreateOrder_MalformedBody(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"customer_name":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestOrderHandler_GetOrderByID_NotFound(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	mockSvc.On("GetOrderByID", mock.Anything, int64(404)).
		Return(nil, order.ErrOrderNotFound).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/orders/404", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_GetOrderByID_BadID(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything)
}

func TestOrderHandler_ListOrders_StatusFilter(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	mockSvc.On("ListOrders", mock.Anything, order.ListFilter{Status: order.StatusPending, Limit: 20}).
		Return([]order.Order{{ID: 1, Status: order.StatusPending}}, 1, nil).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/orders?status=pending", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)
	mockSvc.AssertExpectations(t)
}

func TestOrderHandler_ListOrders_TransientErrorMapsTo503(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	transient := fmt.Errorf("service: failed to list orders: %w",
		&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mockSvc.On("ListOrders", mock.Anything, mock.Anything).
		Return(nil, 0, transient).
		Once()

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "Temporarily unavailable")
}

func TestOrderHandler_ListOrders_InvalidStatus(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=limbo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	mockSvc := new(MockOrderService)
	router := orderRouter(mockSvc)

	mockSvc.On("UpdateOrderStatus", mock.Anything, int64(42), order.StatusShipped).
		Return(nil).
		Once()

	req := httptest.NewRequest(http.MethodPatch, "/orders/42/status", strings.NewReader(`{"status":"shipped"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	mockSvc.AssertExpectations(t)
}
