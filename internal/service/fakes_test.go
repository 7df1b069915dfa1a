package service

import (
	"context"
	"sync"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/events"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	mu          sync.Mutex
	commitErr   error
	commits     int
	rollbacks   int
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr == nil {
		m.commits++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
	return m.rollbackErr
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// memStore is an in-memory stand-in for *database.Queries. Conditional
// updates check their WHERE clause under one mutex, the way a row lock
// serializes them in Postgres.
type memStore struct {
	mu sync.Mutex

	menu       map[uuid.UUID]database.GetMenuItemForOrderRow
	orders     map[uuid.UUID]database.Order
	items      map[uuid.UUID][]database.OrderItem
	deliveries map[uuid.UUID]database.Delivery
	users      map[uuid.UUID]database.User
	sales      map[uuid.UUID]int32

	// createOrderErrs is consumed one entry per CreateOrder call.
	createOrderErrs []error
	createOrderCall int
	// beforeUpdateStatus runs before the conditional status write, with the
	// mutex released.
	beforeUpdateStatus func()

	syncCalls   []database.SyncDeliveryForOrderParams
	intentLocks int
}

func newMemStore() *memStore {
	return &memStore{
		menu:       map[uuid.UUID]database.GetMenuItemForOrderRow{},
		orders:     map[uuid.UUID]database.Order{},
		items:      map[uuid.UUID][]database.OrderItem{},
		deliveries: map[uuid.UUID]database.Delivery{},
		users:      map[uuid.UUID]database.User{},
		sales:      map[uuid.UUID]int32{},
	}
}

func (m *memStore) addMenuItem(name, price string, available bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.menu[id] = database.GetMenuItemForOrderRow{
		ID:          id,
		Name:        name,
		Price:       decimalToNumeric(decimal.RequireFromString(price)),
		IsAvailable: available,
	}
	return id
}

func (m *memStore) addUser(role enum.Role) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = database.User{ID: id, Role: string(role), IsActive: true}
	return id
}

// addOrder seeds an order in status together with its pending delivery.
func (m *memStore) addOrder(customerID uuid.UUID, status enum.OrderStatus) (database.Order, database.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := database.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST",
		CustomerID:    customerID,
		Status:        string(status),
		PaymentStatus: string(enum.PaymentStatusPending),
		PaymentMethod: enum.PaymentMethodCash,
	}
	m.orders[o.ID] = o
	d := database.Delivery{ID: uuid.New(), OrderID: o.ID, Status: string(enum.DeliveryStatusPending)}
	m.deliveries[d.ID] = d
	return o, d
}

func (m *memStore) order(id uuid.UUID) database.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) delivery(id uuid.UUID) database.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries[id]
}

func (m *memStore) setOrder(o database.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *memStore) setDelivery(d database.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = d
}

func (m *memStore) salesOf(orderID uuid.UUID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sales[orderID]
}

func (m *memStore) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi, ok := m.menu[id]
	if !ok {
		return database.GetMenuItemForOrderRow{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.createOrderCall
	m.createOrderCall++
	if call < len(m.createOrderErrs) && m.createOrderErrs[call] != nil {
		return database.Order{}, m.createOrderErrs[call]
	}
	o := database.Order{
		ID:              uuid.New(),
		OrderNumber:     arg.OrderNumber,
		CustomerID:      arg.CustomerID,
		Status:          string(enum.OrderStatusPending),
		PaymentStatus:   string(enum.PaymentStatusPending),
		PaymentMethod:   arg.PaymentMethod,
		Subtotal:        arg.Subtotal,
		DeliveryFee:     arg.DeliveryFee,
		TotalAmount:     arg.TotalAmount,
		DeliveryAddress: arg.DeliveryAddress,
		DeliveryLat:     arg.DeliveryLat,
		DeliveryLng:     arg.DeliveryLng,
		Notes:           arg.Notes,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := database.OrderItem{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		MenuItemID: arg.MenuItemID,
		Name:       arg.Name,
		Quantity:   arg.Quantity,
		UnitPrice:  arg.UnitPrice,
		Subtotal:   arg.Subtotal,
		Notes:      arg.Notes,
	}
	m.items[arg.OrderID] = append(m.items[arg.OrderID], it)
	return it, nil
}

func (m *memStore) CreateDelivery(ctx context.Context, orderID uuid.UUID) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := database.Delivery{ID: uuid.New(), OrderID: orderID, Status: string(enum.DeliveryStatusPending)}
	m.deliveries[d.ID] = d
	return d, nil
}

func (m *memStore) SetOrderPaymentIntent(ctx context.Context, arg database.SetOrderPaymentIntentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[arg.ID]
	o.PaymentIntentID = arg.PaymentIntentID
	m.orders[arg.ID] = o
	return nil
}

func (m *memStore) GetOrderByPaymentIntentForUpdate(ctx context.Context, intentID string) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentLocks++
	for _, o := range m.orders {
		if o.PaymentIntentID.Valid && o.PaymentIntentID.String == intentID {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) UpdateOrderPaymentStatus(ctx context.Context, arg database.UpdateOrderPaymentStatusParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.PaymentStatus = arg.PaymentStatus
	m.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if m.beforeUpdateStatus != nil {
		m.beforeUpdateStatus()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.Status != arg.PrevStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	if arg.AcceptedAt.Valid {
		o.AcceptedAt = arg.AcceptedAt
	}
	if arg.PickedUpAt.Valid {
		o.PickedUpAt = arg.PickedUpAt
	}
	if arg.DeliveredAt.Valid {
		o.DeliveredAt = arg.DeliveredAt
	}
	if arg.CancelledAt.Valid {
		o.CancelledAt = arg.CancelledAt
	}
	if arg.CancellationReason.Valid {
		o.CancellationReason = arg.CancellationReason
	}
	m.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) IncrementMenuItemSales(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items[orderID] {
		m.sales[orderID] += it.Quantity
	}
	return nil
}

func (m *memStore) SyncDeliveryForOrder(ctx context.Context, arg database.SyncDeliveryForOrderParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls = append(m.syncCalls, arg)
	var n int64
	for id, d := range m.deliveries {
		if d.OrderID != arg.OrderID || d.Status == string(enum.DeliveryStatusDelivered) || d.Status == string(enum.DeliveryStatusFailed) {
			continue
		}
		d.Status = arg.Status
		if arg.FailureReason.Valid {
			d.FailureReason = arg.FailureReason
		}
		m.deliveries[id] = d
		n++
	}
	return n, nil
}

func (m *memStore) GetDelivery(ctx context.Context, id uuid.UUID) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return database.Delivery{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *memStore) ClaimDelivery(ctx context.Context, arg database.ClaimDeliveryParams) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[arg.ID]
	if !ok || d.Status != string(enum.DeliveryStatusPending) {
		return database.Delivery{}, pgx.ErrNoRows
	}
	if d.DeliveryPartnerID.Valid && uuid.UUID(d.DeliveryPartnerID.Bytes) != arg.DeliveryPartnerID {
		return database.Delivery{}, pgx.ErrNoRows
	}
	d.Status = string(enum.DeliveryStatusAccepted)
	d.DeliveryPartnerID = pgtype.UUID{Bytes: arg.DeliveryPartnerID, Valid: true}
	d.AcceptedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.deliveries[arg.ID] = d
	return d, nil
}

func (m *memStore) AssignDeliveryPartner(ctx context.Context, arg database.AssignDeliveryPartnerParams) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[arg.ID]
	if !ok || d.Status != string(enum.DeliveryStatusPending) || d.DeliveryPartnerID.Valid {
		return database.Delivery{}, pgx.ErrNoRows
	}
	d.DeliveryPartnerID = pgtype.UUID{Bytes: arg.DeliveryPartnerID, Valid: true}
	m.deliveries[arg.ID] = d
	return d, nil
}

func (m *memStore) AssignOrderPartner(ctx context.Context, arg database.AssignOrderPartnerParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.Status != string(enum.OrderStatusReady) {
		return database.Order{}, pgx.ErrNoRows
	}
	o.DeliveryPartnerID = pgtype.UUID{Bytes: arg.DeliveryPartnerID, Valid: true}
	o.Status = string(enum.OrderStatusOutForDelivery)
	m.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[arg.ID]
	if !ok || d.Status != arg.PrevStatus {
		return database.Delivery{}, pgx.ErrNoRows
	}
	d.Status = arg.Status
	if arg.PickedUpAt.Valid {
		d.PickedUpAt = arg.PickedUpAt
	}
	m.deliveries[arg.ID] = d
	return d, nil
}

func (m *memStore) UpdateDeliveryLocation(ctx context.Context, arg database.UpdateDeliveryLocationParams) (database.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[arg.ID]
	if !ok {
		return database.Delivery{}, pgx.ErrNoRows
	}
	d.CurrentLat = arg.CurrentLat
	d.CurrentLng = arg.CurrentLng
	m.deliveries[arg.ID] = d
	return d, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Side-effect recorders ---

type fakePayments struct {
	intent payment.Intent
	err    error
	calls  []payment.IntentRequest
}

func (f *fakePayments) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	f.calls = append(f.calls, req)
	return f.intent, f.err
}

type sentNotification struct {
	userID uuid.UUID
	kind   string
	msg    lifecycle.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID, orderID uuid.UUID, kind string, msg lifecycle.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID: userID, kind: kind, msg: msg})
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type published struct {
	room  string
	event string
}

type recordingPublisher struct {
	mu  sync.Mutex
	out []published
}

func (r *recordingPublisher) Publish(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, published{room: room, event: event})
}

func (r *recordingPublisher) has(room, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.out {
		if p.room == room && p.event == event {
			return true
		}
	}
	return false
}

type recordingEvents struct {
	mu  sync.Mutex
	out []events.OrderEvent
}

func (r *recordingEvents) PublishOrderEvent(ctx context.Context, e events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, e)
	return nil
}

// --- Helpers ---

type testEnv struct {
	store     *memStore
	tx        *mockTx
	notifier  *recordingNotifier
	publisher *recordingPublisher
	events    *recordingEvents
	payments  *fakePayments
	now       time.Time
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:     newMemStore(),
		tx:        &mockTx{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		events:    &recordingEvents{},
		payments:  &fakePayments{intent: payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}},
		now:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Payments:  e.payments,
		Notifier:  e.notifier,
		Events:    e.events,
		Publisher: e.publisher,
		Now:       func() time.Time { return e.now },
	}
}

func (e *testEnv) orderService() *OrderService {
	return NewOrderService(&mockTxBeginner{tx: e.tx}, func(db database.DBTX) OrderStore {
		return e.store
	}, decimal.NewFromInt(5000), e.deps())
}

func (e *testEnv) deliveryService(demo uuid.UUID) *DeliveryService {
	return NewDeliveryService(&mockTxBeginner{tx: e.tx}, e.store, func(db database.DBTX) DeliveryStore {
		return e.store
	}, demo, e.deps())
}

func numericEquals(n pgtype.Numeric, want string) bool {
	return numericToDecimal(n).Equal(decimal.RequireFromString(want))
}
