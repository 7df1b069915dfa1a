package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foodgram/api/internal/auth"
	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, rooms ...string) *Client {
	return &Client{
		hub:   hub,
		rooms: rooms,
		send:  make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func expectEvent(t *testing.T, c *Client, wantType string) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != wantType {
			t.Errorf("expected type %q, got %q", wantType, received.Type)
		}
		return received
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("client did not receive %s", wantType)
	}
	return Event{}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("client should not have received message, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	room := OrderRoom(uuid.New())
	client := mockClient(hub, room)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[room] == nil {
		t.Fatal("order room not created")
	}
	if !hub.rooms[room][client] {
		t.Fatal("client not registered in order room")
	}
}

func TestHubUnregistrationCleansEveryRoom(t *testing.T) {
	hub := startHub(t)

	userRoom := UserRoom(uuid.New())
	client := mockClient(hub, userRoom, PartnersRoom)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if got := hub.RoomSize(PartnersRoom); got != 1 {
		t.Fatalf("partners room size: got %d, want 1", got)
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[userRoom] != nil || hub.rooms[PartnersRoom] != nil {
		t.Fatal("rooms not cleaned up after last client unregistered")
	}
	if _, open := <-client.send; open {
		t.Fatal("send channel should be closed after unregister")
	}
}

func TestPublishOnlyReachesRoom(t *testing.T) {
	hub := startHub(t)

	order1 := uuid.New()
	order2 := uuid.New()
	client1 := mockClient(hub, OrderRoom(order1))
	client2 := mockClient(hub, OrderRoom(order2))

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.Publish(OrderRoom(order1), enum.EventOrderStatus, map[string]string{"status": "confirmed"})

	got := expectEvent(t, client1, enum.EventOrderStatus)
	if string(got.Payload) != `{"status":"confirmed"}` {
		t.Errorf("payload: got %s", got.Payload)
	}
	expectSilence(t, client2)
}

func TestPublishToPartnersRoomReachesEveryPartner(t *testing.T) {
	hub := startHub(t)

	partners := []*Client{
		mockClient(hub, UserRoom(uuid.New()), PartnersRoom),
		mockClient(hub, UserRoom(uuid.New()), PartnersRoom),
		mockClient(hub, UserRoom(uuid.New()), PartnersRoom),
	}
	customer := mockClient(hub, UserRoom(uuid.New()))

	for _, c := range partners {
		hub.register <- c
	}
	hub.register <- customer
	time.Sleep(10 * time.Millisecond)

	hub.Publish(PartnersRoom, enum.EventDeliveryAvailable, map[string]string{"order_number": "ORD-1"})

	for _, c := range partners {
		expectEvent(t, c, enum.EventDeliveryAvailable)
	}
	expectSilence(t, customer)
}

func TestClientInSeveralRoomsGetsEachEvent(t *testing.T) {
	hub := startHub(t)

	orderID := uuid.New()
	userID := uuid.New()
	client := mockClient(hub, UserRoom(userID), OrderRoom(orderID))

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Publish(UserRoom(userID), enum.EventNotification, map[string]string{"title": "hi"})
	hub.Publish(OrderRoom(orderID), enum.EventOrderStatus, map[string]string{"status": "ready"})

	expectEvent(t, client, enum.EventNotification)
	expectEvent(t, client, enum.EventOrderStatus)
}

func TestPublishToEmptyRoom(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, OrderRoom(uuid.New()))
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Publish(OrderRoom(uuid.New()), enum.EventOrderStatus, map[string]string{"test": "data"})

	expectSilence(t, client)
}

func TestPublishDropsUnmarshalablePayload(t *testing.T) {
	hub := startHub(t)

	room := UserRoom(uuid.New())
	client := mockClient(hub, room)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Publish(room, enum.EventNotification, make(chan int))

	expectSilence(t, client)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := mockClient(hub, UserRoom(uuid.New()), PartnersRoom)
	if !hub.join(client) {
		t.Fatal("join should succeed while hub is running")
	}
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("hub did not stop")
	}

	if _, open := <-client.send; open {
		t.Fatal("send channel should be closed on shutdown")
	}
	if hub.join(mockClient(hub, PartnersRoom)) {
		t.Fatal("join should fail after shutdown")
	}
	// leave after shutdown must not block
	hub.leave(client)
}

func TestBridgeDeliverRoutesToLocalHub(t *testing.T) {
	hub := startHub(t)
	bridge := NewRedisBridge(hub, nil, "")
	if bridge.channel != DefaultChannel {
		t.Fatalf("channel: got %q, want %q", bridge.channel, DefaultChannel)
	}

	orderID := uuid.New()
	client := mockClient(hub, OrderRoom(orderID))
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	msg, err := json.Marshal(envelope{
		Room:  OrderRoom(orderID),
		Event: Event{Type: enum.EventDeliveryLocation, Payload: json.RawMessage(`{"lat":1.5}`)},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bridge.deliver(string(msg))

	got := expectEvent(t, client, enum.EventDeliveryLocation)
	if string(got.Payload) != `{"lat":1.5}` {
		t.Errorf("payload: got %s", got.Payload)
	}

	bridge.deliver("not json")
	bridge.deliver(`{"event":{"type":"x"}}`)
	expectSilence(t, client)
}

type mockOrderLookup struct {
	getOrderFn func(ctx context.Context, id uuid.UUID) (database.Order, error)
}

func (m *mockOrderLookup) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}

func lookupReturning(o database.Order, err error) *mockOrderLookup {
	return &mockOrderLookup{getOrderFn: func(context.Context, uuid.UUID) (database.Order, error) {
		return o, err
	}}
}

func TestRoomsFor(t *testing.T) {
	customerID := uuid.New()
	partnerID := uuid.New()
	orderID := uuid.New()
	order := database.Order{
		ID:                orderID,
		CustomerID:        customerID,
		Status:            string(enum.OrderStatusOutForDelivery),
		DeliveryPartnerID: pgtype.UUID{Bytes: partnerID, Valid: true},
	}

	tests := []struct {
		name    string
		claims  *auth.Claims
		orderID uuid.UUID
		want    []string
		wantErr error
	}{
		{
			name:   "customer without order",
			claims: &auth.Claims{UserID: customerID, Role: string(enum.RoleCustomer)},
			want:   []string{UserRoom(customerID)},
		},
		{
			name:   "partner joins partners room",
			claims: &auth.Claims{UserID: partnerID, Role: string(enum.RoleDelivery)},
			want:   []string{UserRoom(partnerID), PartnersRoom},
		},
		{
			name:    "owner watches order",
			claims:  &auth.Claims{UserID: customerID, Role: string(enum.RoleCustomer)},
			orderID: orderID,
			want:    []string{UserRoom(customerID), OrderRoom(orderID)},
		},
		{
			name:    "assigned partner watches order",
			claims:  &auth.Claims{UserID: partnerID, Role: string(enum.RoleDelivery)},
			orderID: orderID,
			want:    []string{UserRoom(partnerID), PartnersRoom, OrderRoom(orderID)},
		},
		{
			name:    "stranger is refused",
			claims:  &auth.Claims{UserID: uuid.New(), Role: string(enum.RoleCustomer)},
			orderID: orderID,
			wantErr: lifecycle.ErrForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rooms, err := RoomsFor(context.Background(), lookupReturning(order, nil), tc.claims, tc.orderID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err: got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rooms) != len(tc.want) {
				t.Fatalf("rooms: got %v, want %v", rooms, tc.want)
			}
			for i := range rooms {
				if rooms[i] != tc.want[i] {
					t.Fatalf("rooms: got %v, want %v", rooms, tc.want)
				}
			}
		})
	}
}

func TestServeWSRejects(t *testing.T) {
	const secret = "test-secret"
	customerID := uuid.New()
	token, err := auth.GenerateToken(secret, customerID, string(enum.RoleCustomer))
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		name   string
		query  string
		lookup *mockOrderLookup
		want   int
	}{
		{"missing token", "", nil, http.StatusUnauthorized},
		{"bad token", "?token=nope", nil, http.StatusUnauthorized},
		{"bad order id", "?token=" + token + "&order=abc", nil, http.StatusBadRequest},
		{
			"unknown order",
			"?token=" + token + "&order=" + uuid.NewString(),
			lookupReturning(database.Order{}, pgx.ErrNoRows),
			http.StatusNotFound,
		},
		{
			"someone else's order",
			"?token=" + token + "&order=" + uuid.NewString(),
			lookupReturning(database.Order{CustomerID: uuid.New(), Status: string(enum.OrderStatusPending)}, nil),
			http.StatusForbidden,
		},
	}

	hub := startHub(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lookup := tc.lookup
			if lookup == nil {
				lookup = lookupReturning(database.Order{}, nil)
			}
			req := httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil)
			rr := httptest.NewRecorder()
			ServeWS(hub, lookup, secret, rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}
