package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/batikstore/backend/internal/catalog"
	"github.com/batikstore/backend/internal/db"
	"github.com/batikstore/backend/internal/order"
	"github.com/batikstore/backend/internal/payment"
)

// respondWithError sends a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	var validationErr *order.ValidationError
	var stockErr *order.InsufficientStockError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrInvalidPaymentMethod),
		errors.Is(err, payment.ErrMissingProof),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrMissingRejectionReason):
		return http.StatusBadRequest
	case errors.As(err, &stockErr), errors.Is(err, catalog.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, payment.ErrAlreadyReconciled):
		return http.StatusConflict
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound
	case db.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage picks a safe message for the response body. Internal details
// stay in the logs.
func clientMessage(err error, fallback string) string {
	switch mapErrorToStatusCode(err) {
	case http.StatusInternalServerError:
		return fallback
	case http.StatusServiceUnavailable:
		return "Temporarily unavailable, please retry"
	}
	return err.Error()
}
