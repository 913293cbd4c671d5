package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/batikstore/backend/internal/catalog"
)

type ProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"min=0"`
	Discount    decimal.Decimal `json:"discount"`
	ImageURL    string          `json:"image_url"`
	IsActive    bool            `json:"is_active"`
}

// ProductHandler exposes the catalog: public reads plus the admin
// create/update endpoints.
type ProductHandler struct {
	repo     catalog.Repository
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(repo catalog.Repository) *ProductHandler {
	return &ProductHandler{repo: repo, validate: validator.New()}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProductByID)
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter := catalog.ListFilter{
		Category:   r.URL.Query().Get("category"),
		ActiveOnly: r.URL.Query().Get("include_inactive") != "true",
		Limit:      parseQueryInt(r, "limit", 20),
		Offset:     parseQueryInt(r, "offset", 0),
	}

	products, err := h.repo.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to list products"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *ProductHandler) handleGetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("product_id", id).Msg("Failed to get product")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get product"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	p := productFromRequest(req)
	id, err := h.repo.Create(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create product")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to create product"))
		return
	}
	p.ID = id

	respondWithJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	p := productFromRequest(req)
	p.ID = id
	if err := h.repo.Update(r.Context(), p); err != nil {
		log.Error().Err(err).Int64("product_id", id).Msg("Failed to update product")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update product"))
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*ProductRequest, bool) {
	var req ProductRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode product request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return nil, false
	}
	if req.Price.IsNegative() {
		respondWithError(w, http.StatusBadRequest, "Price must not be negative")
		return nil, false
	}
	if req.Discount.IsNegative() || req.Discount.GreaterThan(decimal.NewFromInt(100)) {
		respondWithError(w, http.StatusBadRequest, "Discount must be between 0 and 100")
		return nil, false
	}

	return &req, true
}

func productFromRequest(req *ProductRequest) *catalog.Product {
	return &catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Discount:    req.Discount,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
	}
}
