package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/nmoret/inventario/internal/model"
	"github.com/nmoret/inventario/internal/store"
)

// CatalogHandler handles category and brand lookup endpoints.
type CatalogHandler struct {
	DB *sql.DB
}

type createNameRequest struct {
	Name string `json:"name"`
}

// ListCategories handles GET /api/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// CreateCategory handles POST /api/categories.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createNameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	category, err := store.CreateCategory(r.Context(), h.DB, req.Name)
	if err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, category)
}

// ListBrands handles GET /api/brands.
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := store.ListBrands(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list brands", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list brands")
		return
	}
	if brands == nil {
		brands = []model.Brand{}
	}
	jsonResponse(w, http.StatusOK, brands)
}

// CreateBrand handles POST /api/brands.
func (h *CatalogHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req createNameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	brand, err := store.CreateBrand(r.Context(), h.DB, req.Name)
	if err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, brand)
}
