package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/go-chi/chi/v5"
)

const topMenuItemsLimit = 10

// StatsStore defines the database methods needed by the stats handler.
// Satisfied by *database.Queries; narrow interface for testability.
type StatsStore interface {
	CountOrdersByStatus(ctx context.Context, arg database.CountOrdersByStatusParams) ([]database.CountOrdersByStatusRow, error)
	GetRevenueSummary(ctx context.Context, arg database.GetRevenueSummaryParams) (database.GetRevenueSummaryRow, error)
	ListTopMenuItems(ctx context.Context, limit int32) ([]database.MenuItem, error)
}

// StatsHandler serves the admin dashboard figures.
type StatsHandler struct {
	store StatsStore
	now   func() time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(store StatsStore) *StatsHandler {
	return &StatsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers admin stats endpoints.
// Expected to be mounted behind RequireRole(admin) at /admin.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.Stats)
}

type statsResponse struct {
	StartDate       string             `json:"start_date"`
	EndDate         string             `json:"end_date"`
	OrdersByStatus  map[string]int64   `json:"orders_by_status"`
	TotalOrders     int64              `json:"total_orders"`
	DeliveredOrders int64              `json:"delivered_orders"`
	Revenue         string             `json:"revenue"`
	DeliveryFees    string             `json:"delivery_fees"`
	TopMenuItems    []menuItemResponse `json:"top_menu_items"`
}

// Stats handles GET /admin/stats?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD.
// Both dates are inclusive; the default range is the last 30 days.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := h.store.CountOrdersByStatus(r.Context(), database.CountOrdersByStatusParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternal(w, "count orders by status", err)
		return
	}

	revenue, err := h.store.GetRevenueSummary(r.Context(), database.GetRevenueSummaryParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeInternal(w, "get revenue summary", err)
		return
	}

	top, err := h.store.ListTopMenuItems(r.Context(), topMenuItemsLimit)
	if err != nil {
		writeInternal(w, "list top menu items", err)
		return
	}

	resp := statsResponse{
		StartDate:       start.Format(dateLayout),
		EndDate:         end.AddDate(0, 0, -1).Format(dateLayout),
		OrdersByStatus:  make(map[string]int64, len(enum.OrderStatuses)),
		DeliveredOrders: revenue.DeliveredOrders,
		Revenue:         numericToString(revenue.Revenue),
		DeliveryFees:    numericToString(revenue.DeliveryFees),
		TopMenuItems:    make([]menuItemResponse, len(top)),
	}
	for _, s := range enum.OrderStatuses {
		resp.OrdersByStatus[string(s)] = 0
	}
	for _, row := range counts {
		resp.OrdersByStatus[row.Status] = row.OrderCount
		resp.TotalOrders += row.OrderCount
	}
	for i, m := range top {
		resp.TopMenuItems[i] = toMenuItemResponse(m)
	}

	writeData(w, http.StatusOK, resp)
}

const dateLayout = "2006-01-02"

// parseDateRange returns [start, end) in UTC from inclusive query dates.
func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Default: last 30 days including today
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format, use YYYY-MM-DD")
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format, use YYYY-MM-DD")
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must not be after end_date")
	}
	return startDate, endDate, nil
}
