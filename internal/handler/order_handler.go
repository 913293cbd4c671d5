package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/batikstore/backend/internal/order"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service order.Service
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode order request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	orderID, err := h.service.PlaceOrder(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to place order")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to place order"))
		return
	}

	created, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("Failed to load order after creation")
		respondWithJSON(w, http.StatusCreated, map[string]int64{"id": orderID})
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("order_id", id).Msg("Failed to get order")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get order"))
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{
		Status: order.OrderStatus(r.URL.Query().Get("status")),
		Limit:  parseQueryInt(r, "limit", 20),
		Offset: parseQueryInt(r, "offset", 0),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "Invalid order status filter")
		return
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to list orders"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}

type updateOrderStatusRequest struct {
	Status order.OrderStatus `json:"status"`
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), id, req.Status); err != nil {
		log.Error().Err(err).Int64("order_id", id).Msg("Failed to update order status")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update order status"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseQueryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
