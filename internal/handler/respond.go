package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/foodgram/api/internal/auth"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/service"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeInternal(w http.ResponseWriter, op string, err error) {
	zap.L().Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// errorStatus maps domain and service errors to HTTP status codes. Zero means
// the error is unexpected.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrDeliveryNotFound),
		errors.Is(err, service.ErrMenuItemNotFound):
		return http.StatusNotFound

	case errors.Is(err, lifecycle.ErrForbidden),
		errors.Is(err, lifecycle.ErrNotAssignedPartner),
		errors.Is(err, lifecycle.ErrDemoAccount):
		return http.StatusForbidden

	case errors.Is(err, service.ErrConcurrentUpdate):
		return http.StatusConflict

	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotCancellable),
		errors.Is(err, lifecycle.ErrInvalidDeliveryStatus),
		errors.Is(err, lifecycle.ErrDeliveryUnavailable),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrMenuItemUnavailable),
		errors.Is(err, service.ErrDeliveryAddress),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPartner),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusBadRequest
	}
	return 0
}

// writeServiceError responds with the mapped status, or logs and responds
// 500 for anything unexpected.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	if status := errorStatus(err); status != 0 {
		writeError(w, status, err.Error())
		return
	}
	writeInternal(w, op, err)
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = min(v, math.MaxInt32)
		}
	}
	return limit, offset
}
