package service

import (
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func floatOrNull(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

func uuidOrNil(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return u.Bytes
}

func partnerOf(o database.Order) uuid.UUID {
	return uuidOrNil(o.DeliveryPartnerID)
}

func orderRef(o database.Order) lifecycle.OrderRef {
	return lifecycle.OrderRef{
		Status:            enum.OrderStatus(o.Status),
		CustomerID:        o.CustomerID,
		DeliveryPartnerID: partnerOf(o),
	}
}

func deliveryRef(d database.Delivery) lifecycle.DeliveryRef {
	return lifecycle.DeliveryRef{
		Status:    enum.DeliveryStatus(d.Status),
		PartnerID: uuidOrNil(d.DeliveryPartnerID),
	}
}
