package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func event(typ, intentID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":%q,"object":"payment_intent"}}}`, typ, intentID))
}

func TestParseStripeEvent(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		kind     EventKind
		intentID string
	}{
		{"succeeded", "payment_intent.succeeded", EventSucceeded, "pi_123"},
		{"failed", "payment_intent.payment_failed", EventFailed, "pi_123"},
		{"other", "charge.refunded", EventIgnored, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := event(tt.typ, "pi_123")
			got, err := parseStripeEvent(payload, sign(payload, testSecret, time.Now()), testSecret)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Kind != tt.kind || got.IntentID != tt.intentID {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestParseStripeEventBadSignature(t *testing.T) {
	payload := event("payment_intent.succeeded", "pi_123")
	_, err := parseStripeEvent(payload, sign(payload, "whsec_other", time.Now()), testSecret)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	_, err = parseStripeEvent(payload, "", testSecret)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("empty header: expected ErrInvalidSignature, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	if got := minorUnits(decimal.RequireFromString("30000"), "uzs"); got != 3000000 {
		t.Errorf("uzs: got %d", got)
	}
	if got := minorUnits(decimal.RequireFromString("12.345"), "usd"); got != 1235 {
		t.Errorf("usd: got %d", got)
	}
	if got := minorUnits(decimal.RequireFromString("500"), "JPY"); got != 500 {
		t.Errorf("jpy: got %d", got)
	}
}

func TestOffline(t *testing.T) {
	in, err := Offline{}.CreateIntent(context.Background(), IntentRequest{OrderID: uuid.New()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(in.ID, "offline_") {
		t.Errorf("id: got %q", in.ID)
	}
	if _, err := (Offline{}).ParseWebhook([]byte("{}"), ""); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("offline webhook: got %v", err)
	}
}
