package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucsky/cuid"
)

// newOrderNumber returns a human-readable order number such as
// ORD-20260314-CL9EBQHXK000008L3B1M3B5QW. The date prefix helps support
// staff; uniqueness comes from the cuid and is backed by a unique index.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(cuid.New()))
}
