package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/batikstore/backend/internal/payment"
)

// PaymentHandler handles HTTP requests for payment reconciliation.
type PaymentHandler struct {
	service payment.Service
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service payment.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/{order_id}/payment", h.handleSubmitPayment)
	router.Get("/orders/{order_id}/payment", h.handleGetPayment)
	router.Get("/payments/pending", h.handleListPending)
	router.Get("/payments/{id}", h.handleGetPaymentByID)
	router.Post("/payments/{id}/verify", h.handleVerifyPayment)
	router.Post("/payments/{id}/reject", h.handleRejectPayment)
}

func (h *PaymentHandler) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "order_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var req payment.SubmitRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode payment request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	p, err := h.service.SubmitPayment(r.Context(), orderID, req)
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("Failed to submit payment")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to submit payment"))
		return
	}

	respondWithJSON(w, http.StatusCreated, p)
}

func (h *PaymentHandler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "order_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	p, err := h.service.GetPaymentByOrderID(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("Failed to get payment")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get payment"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) handleGetPaymentByID(w http.ResponseWriter, r *http.Request) {
	paymentID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment id")
		return
	}

	p, err := h.service.GetPaymentByID(r.Context(), paymentID)
	if err != nil {
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("Failed to get payment")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get payment"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 20)
	offset := parseQueryInt(r, "offset", 0)

	payments, total, err := h.service.ListPendingPayments(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list pending payments")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to list pending payments"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"total":    total,
	})
}

type verifyPaymentRequest struct {
	AdminID int64 `json:"admin_id"`
}

func (h *PaymentHandler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment id")
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	p, err := h.service.VerifyPayment(r.Context(), paymentID, req.AdminID)
	if err != nil {
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("Failed to verify payment")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to verify payment"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

type rejectPaymentRequest struct {
	AdminID int64  `json:"admin_id"`
	Reason  string `json:"reason"`
}

func (h *PaymentHandler) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment id")
		return
	}

	var req rejectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	p, err := h.service.RejectPayment(r.Context(), paymentID, req.AdminID, req.Reason)
	if err != nil {
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("Failed to reject payment")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to reject payment"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}
