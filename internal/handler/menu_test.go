package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type mockMenuStore struct {
	categories []database.Category
	items      []database.MenuItem
	gotParams  database.ListMenuItemsParams
	err        error
}

func (m *mockMenuStore) ListCategories(context.Context) ([]database.Category, error) {
	return m.categories, m.err
}

func (m *mockMenuStore) ListMenuItems(_ context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error) {
	m.gotParams = arg
	return m.items, m.err
}

func setupMenuRouter(store handler.MenuStore) *chi.Mux {
	r := chi.NewRouter()
	handler.NewMenuHandler(store).RegisterRoutes(r)
	return r
}

func TestListCategories(t *testing.T) {
	store := &mockMenuStore{categories: []database.Category{
		{ID: uuid.New(), Name: "Rice", SortOrder: 1, IsActive: true},
		{ID: uuid.New(), Name: "Drinks", SortOrder: 2, IsActive: true},
	}}
	router := setupMenuRouter(store)

	rr := doRequest(t, router, "GET", "/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	list := decodeList(t, rr)
	if len(list) != 2 {
		t.Fatalf("categories: got %d, want 2", len(list))
	}
	if first := list[0].(map[string]interface{}); first["name"] != "Rice" {
		t.Errorf("name: got %v, want Rice", first["name"])
	}
}

func TestListMenuItems_Filters(t *testing.T) {
	categoryID := uuid.New()
	store := &mockMenuStore{items: []database.MenuItem{{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		Name:        "Nasi Goreng",
		Price:       testNumeric("25000"),
		ImageUrl:    pgtype.Text{String: "https://cdn.example.com/nasi.jpg", Valid: true},
		IsAvailable: true,
		SalesCount:  12,
	}}}
	router := setupMenuRouter(store)

	rr := doRequest(t, router, "GET", "/menu-items?category_id="+categoryID.String()+"&sort=popular", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.gotParams.CategoryID != (pgtype.UUID{Bytes: categoryID, Valid: true}) {
		t.Errorf("category filter: got %+v", store.gotParams.CategoryID)
	}
	if !store.gotParams.SortPopular {
		t.Error("expected popular sort")
	}

	item := decodeList(t, rr)[0].(map[string]interface{})
	if item["price"] != "25000.00" {
		t.Errorf("price: got %v, want 25000.00", item["price"])
	}
	if item["sales_count"] != float64(12) {
		t.Errorf("sales_count: got %v, want 12", item["sales_count"])
	}
}

func TestListMenuItems_DefaultsToAll(t *testing.T) {
	store := &mockMenuStore{}
	router := setupMenuRouter(store)

	rr := doRequest(t, router, "GET", "/menu-items", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.gotParams.CategoryID.Valid || store.gotParams.SortPopular {
		t.Errorf("params: got %+v, want zero", store.gotParams)
	}
}

func TestListMenuItems_BadQuery(t *testing.T) {
	router := setupMenuRouter(&mockMenuStore{})
	for _, q := range []string{"?category_id=nope", "?sort=cheapest"} {
		rr := doRequest(t, router, "GET", "/menu-items"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestListMenuItems_StoreError(t *testing.T) {
	router := setupMenuRouter(&mockMenuStore{err: errors.New("boom")})
	rr := doRequest(t, router, "GET", "/menu-items", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
