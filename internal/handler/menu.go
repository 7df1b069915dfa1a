package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
}

// MenuHandler serves the public catalog.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers the catalog endpoints.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/menu-items", h.ListMenuItems)
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	ImageURL    *string   `json:"image_url"`
	IsAvailable bool      `json:"is_available"`
	SalesCount  int32     `json:"sales_count"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		SortOrder: c.SortOrder,
		CreatedAt: c.CreatedAt,
	}
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Description: m.Description,
		Price:       numericToString(m.Price),
		ImageURL:    textPtr(m.ImageUrl),
		IsAvailable: m.IsAvailable,
		SalesCount:  m.SalesCount,
	}
}

// ListCategories handles GET /categories.
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeInternal(w, "list categories", err)
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeData(w, http.StatusOK, resp)
}

// ListMenuItems handles GET /menu-items?category_id=&sort=popular.
func (h *MenuHandler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	var params database.ListMenuItemsParams
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: id, Valid: true}
	}
	switch r.URL.Query().Get("sort") {
	case "":
	case "popular":
		params.SortPopular = true
	default:
		writeError(w, http.StatusBadRequest, "sort must be popular")
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), params)
	if err != nil {
		writeInternal(w, "list menu items", err)
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeData(w, http.StatusOK, resp)
}
