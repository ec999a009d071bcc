package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/auth"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/gateway"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

const gatewaySecret = "gw-secret"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	orders []gateway.OrderRequest
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.orders = append(g.orders, req)
	return &gateway.Order{ID: fmt.Sprintf("order_%d", len(g.orders)), Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.Sign(gatewaySecret, orderID, paymentID) == signature
}

func (g *fakeGateway) KeyID() string    { return "key_test" }
func (g *fakeGateway) Currency() string { return "INR" }

type env struct {
	store    *repository.Store
	db       *gorm.DB
	clock    *fakeClock
	gw       *fakeGateway
	accounts *AccountService
	catalog  *CatalogService
	bookings *BookingService
	payments *PaymentService

	customer Actor
	worker   Actor
	workerID uuid.UUID
	service  uuid.UUID
}

func newEnv(t *testing.T, allowsCOD bool) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	e := &env{
		db:    db,
		store: repository.NewStore(db),
		clock: &fakeClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
		gw:    &fakeGateway{},
	}
	e.accounts = NewAccountService(e.store, auth.NewIssuer("test-secret", time.Hour))
	e.catalog = NewCatalogService(e.store)
	e.bookings = NewBookingService(e.store, Options{Now: e.clock.Now})
	e.payments = NewPaymentService(e.bookings, e.gw)

	ctx := context.Background()
	if _, err := e.catalog.SeedCatalog(ctx, strings.NewReader("services:\n  - name: plumbing\n    base_cost: 100\n")); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	services, _, err := e.catalog.ListServices(ctx, 10, 0)
	if err != nil || len(services) != 1 {
		t.Fatalf("list services: %v %v", services, err)
	}
	e.service = services[0].ID

	cs, err := e.accounts.Signup(ctx, SignupInput{Email: "anna@example.com", Password: "password1", Name: "Anna"})
	if err != nil {
		t.Fatalf("signup customer: %v", err)
	}
	e.customer, err = e.accounts.Authenticate(ctx, cs.Token)
	if err != nil {
		t.Fatalf("authenticate customer: %v", err)
	}
	lat, lng := 12.97, 77.59
	_, err = e.accounts.UpdateProfile(ctx, e.customer, repository.ProfileUpdate{
		Phone: "+919876543210", Address: "MG Road 1", Latitude: &lat, Longitude: &lng,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}

	ws, err := e.accounts.Signup(ctx, SignupInput{
		Email: "ivan@example.com", Password: "password2", Name: "Ivan", Role: model.RoleWorker, AllowsCOD: allowsCOD,
	})
	if err != nil {
		t.Fatalf("signup worker: %v", err)
	}
	e.worker, _ = e.accounts.Authenticate(ctx, ws.Token)
	offer, err := e.catalog.AddOffer(ctx, e.worker, e.service, 0)
	if err != nil {
		t.Fatalf("add offer: %v", err)
	}
	e.workerID = offer.WorkerID
	return e
}

func (e *env) newBooking(t *testing.T) *model.Booking {
	t.Helper()
	b, err := e.bookings.Create(context.Background(), e.customer, CreateBookingInput{
		WorkerID:     e.workerID,
		ServiceID:    e.service,
		Description:  "leaking tap",
		Urgency:      "today",
		ContactDates: []string{"2025-03-14", " "},
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (e *env) eventTypes(t *testing.T, id uuid.UUID) []model.EventType {
	t.Helper()
	events, err := e.store.Events.ListByBooking(context.Background(), id)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func hasEvent(types []model.EventType, want model.EventType) bool {
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func TestBookingService_CancelWindow(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	b := e.newBooking(t)
	if b.BasePrice != 100 || b.Status != booking.StatusRequested {
		t.Fatalf("created booking = %+v", b)
	}

	e.clock.Advance(time.Minute)
	if _, err := e.bookings.Accept(ctx, e.worker, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	w, _ := e.store.Workers.GetByID(ctx, e.workerID)
	if w.IsAvailable {
		t.Fatalf("worker still available after accept")
	}

	e.clock.Advance(3 * time.Minute)
	got, err := e.bookings.Cancel(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("cancel at T0+4m: %v", err)
	}
	if got.Status != booking.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	w, _ = e.store.Workers.GetByID(ctx, e.workerID)
	if !w.IsAvailable {
		t.Fatalf("worker not released after cancel")
	}

	late := e.newBooking(t)
	e.clock.Advance(time.Minute)
	if _, err := e.bookings.Accept(ctx, e.worker, late.ID); err != nil {
		t.Fatalf("accept late: %v", err)
	}
	e.clock.Advance(5 * time.Minute)
	if _, err := e.bookings.Cancel(ctx, e.customer, late.ID); !booking.IsInvalidTransition(err) {
		t.Fatalf("cancel at T0+6m: err = %v, want InvalidTransition", err)
	}
	reloaded, _ := e.store.Bookings.GetByID(ctx, late.ID)
	if reloaded.Status != booking.StatusAccepted || reloaded.CancelledAt != nil {
		t.Fatalf("failed cancel changed booking: %+v", reloaded)
	}
}

func TestBookingService_TariffPaymentRating(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	b := e.newBooking(t)

	if _, err := e.bookings.Accept(ctx, e.worker, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.bookings.AddItem(ctx, e.worker, b.ID, booking.TariffItem{Label: "parts", Amount: 50}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := e.bookings.SendReceipt(ctx, e.worker, b.ID); err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if _, err := e.bookings.UpdateItem(ctx, e.worker, b.ID, 0, booking.TariffItem{Label: "parts", Amount: 10}); !booking.IsInvalidTransition(err) {
		t.Fatalf("update after receipt: err = %v", err)
	}

	if _, err := e.bookings.ChoosePaymentMethod(ctx, e.customer, b.ID, booking.MethodCOD); !booking.IsInvalidTransition(err) {
		t.Fatalf("cod with worker that refuses cash: err = %v", err)
	}

	order, err := e.payments.CreateOrder(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Amount != 15000 || order.Currency != "INR" || order.Key != "key_test" {
		t.Fatalf("order = %+v", order)
	}
	if got := e.gw.orders[0].Notes["booking_id"]; got != b.ID.String() {
		t.Fatalf("order notes booking_id = %q", got)
	}
	reopened, err := e.payments.CreateOrder(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("create order again: %v", err)
	}
	if reopened.OrderID != order.OrderID || len(e.gw.orders) != 1 {
		t.Fatalf("open order not reused: %s vs %s, gateway calls = %d", reopened.OrderID, order.OrderID, len(e.gw.orders))
	}

	cb := booking.GatewayCallback{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: gateway.Sign(gatewaySecret, order.OrderID, "pay_1"),
	}
	paid, err := e.payments.VerifyOnline(ctx, e.customer, b.ID, cb)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if paid.PaymentStatus != booking.PaymentPaid || paid.PaymentReference != "pay_1" {
		t.Fatalf("payment = %s / %q", paid.PaymentStatus, paid.PaymentReference)
	}

	again, err := e.payments.VerifyOnline(ctx, e.customer, b.ID, cb)
	if err != nil {
		t.Fatalf("repeated verify: %v", err)
	}
	if again.Version != paid.Version {
		t.Fatalf("repeated verify changed booking: version %d -> %d", paid.Version, again.Version)
	}

	done, err := e.bookings.Complete(ctx, e.worker, b.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != booking.StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	if _, err := e.bookings.Rate(ctx, e.customer, b.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := e.bookings.Rate(ctx, e.customer, b.ID, 4); !booking.IsInvalidTransition(err) {
		t.Fatalf("second rating: err = %v", err)
	}

	w, _ := e.store.Workers.GetByID(ctx, e.workerID)
	if !w.IsAvailable || w.AverageRating != 5 || w.TotalReviews != 1 {
		t.Fatalf("worker after completion = %+v", w)
	}
	home, err := e.bookings.WorkerHome(ctx, e.worker)
	if err != nil {
		t.Fatalf("worker home: %v", err)
	}
	if home.Earnings != 150 || home.ActiveJob != nil {
		t.Fatalf("home = %+v", home)
	}

	types := e.eventTypes(t, b.ID)
	for _, want := range []model.EventType{
		model.EventTypeBookingCreated,
		model.EventTypeBookingAccepted,
		model.EventTypeReceiptSent,
		model.EventTypeOrderCreated,
		model.EventTypePaymentPaid,
		model.EventTypeBookingCompleted,
		model.EventTypeBookingRated,
	} {
		if !hasEvent(types, want) {
			t.Fatalf("missing %s in %v", want, types)
		}
	}
}

func TestBookingService_Accept_OneActiveJob(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	first := e.newBooking(t)
	second := e.newBooking(t)
	if _, err := e.bookings.Accept(ctx, e.worker, first.ID); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	// Исполнитель вручную включил доступность, но активная работа всё равно есть.
	if _, err := e.bookings.SetAvailability(ctx, e.worker, true); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if _, err := e.bookings.Accept(ctx, e.worker, second.ID); !booking.IsInvalidTransition(err) {
		t.Fatalf("accept second: err = %v, want InvalidTransition", err)
	}
}

func TestBookingService_Authorization(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	b := e.newBooking(t)

	if _, err := e.bookings.Accept(ctx, e.customer, b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer accepting: err = %v", err)
	}
	if _, err := e.bookings.Cancel(ctx, e.worker, b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("worker cancelling: err = %v", err)
	}
	stranger := Actor{UserID: uuid.New(), Role: model.RoleCustomer}
	if _, err := e.bookings.Get(ctx, stranger, b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger reading: err = %v", err)
	}
	if _, err := e.bookings.Get(ctx, e.customer, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown booking: err = %v", err)
	}
	if _, err := e.bookings.Get(ctx, e.worker, b.ID); err != nil {
		t.Fatalf("assigned worker reading: %v", err)
	}
}

func TestBookingService_Create_RequiresCompleteProfile(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	s, err := e.accounts.Signup(ctx, SignupInput{Email: "new@example.com", Password: "password3", Name: "New"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	actor, _ := e.accounts.Authenticate(ctx, s.Token)
	_, err = e.bookings.Create(ctx, actor, CreateBookingInput{WorkerID: e.workerID, ServiceID: e.service})
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("err = %v, want ErrProfileIncomplete", err)
	}
}

func TestPaymentService_VerifyOnline_BadSignature(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	b := e.newBooking(t)

	_, _ = e.bookings.Accept(ctx, e.worker, b.ID)
	_, _ = e.bookings.AddItem(ctx, e.worker, b.ID, booking.TariffItem{Label: "labour", Amount: 20})
	_, _ = e.bookings.SendReceipt(ctx, e.worker, b.ID)
	order, err := e.payments.CreateOrder(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = e.payments.VerifyOnline(ctx, e.customer, b.ID, booking.GatewayCallback{
		OrderID: order.OrderID, PaymentID: "pay_x", Signature: "deadbeef",
	})
	if !errors.Is(err, booking.ErrSignatureMismatch) {
		t.Fatalf("err = %v, want ErrSignatureMismatch", err)
	}

	got, _ := e.store.Bookings.GetByID(ctx, b.ID)
	if got.PaymentStatus != booking.PaymentPending {
		t.Fatalf("payment_status = %s", got.PaymentStatus)
	}
	o, _ := e.store.Payments.FindByOrderID(ctx, order.OrderID)
	if o.Status != model.GatewayOrderFailed {
		t.Fatalf("order status = %s, want failed", o.Status)
	}

	_, err = e.payments.VerifyOnline(ctx, e.customer, b.ID, booking.GatewayCallback{
		OrderID: "order_unknown", PaymentID: "pay_y", Signature: gateway.Sign(gatewaySecret, "order_unknown", "pay_y"),
	})
	if !errors.Is(err, booking.ErrOrderMismatch) {
		t.Fatalf("unknown order: err = %v", err)
	}

	retry, err := e.payments.CreateOrder(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("create order after failure: %v", err)
	}
	if retry.OrderID == order.OrderID || len(e.gw.orders) != 2 {
		t.Fatalf("failed order reused: %s, gateway calls = %d", retry.OrderID, len(e.gw.orders))
	}
}

func TestPaymentService_CashOnDelivery(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	b := e.newBooking(t)

	_, _ = e.bookings.Accept(ctx, e.worker, b.ID)
	_, _ = e.bookings.Start(ctx, e.worker, b.ID)
	_, _ = e.bookings.AddItem(ctx, e.worker, b.ID, booking.TariffItem{Label: "labour", Amount: 200})
	_, _ = e.bookings.SendReceipt(ctx, e.worker, b.ID)

	if _, err := e.payments.ConfirmCOD(ctx, e.worker, b.ID); !booking.IsInvalidTransition(err) {
		t.Fatalf("attest before cod chosen: err = %v", err)
	}
	if _, err := e.bookings.ChoosePaymentMethod(ctx, e.customer, b.ID, booking.MethodCOD); err != nil {
		t.Fatalf("choose cod: %v", err)
	}
	if _, err := e.payments.CreateOrder(ctx, e.customer, b.ID); !booking.IsInvalidTransition(err) {
		t.Fatalf("online order after cod: err = %v", err)
	}
	if _, err := e.payments.ConfirmCOD(ctx, e.customer, b.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer attesting: err = %v", err)
	}

	paid, err := e.payments.ConfirmCOD(ctx, e.worker, b.ID)
	if err != nil {
		t.Fatalf("confirm cod: %v", err)
	}
	if paid.PaymentStatus != booking.PaymentPaid {
		t.Fatalf("payment_status = %s", paid.PaymentStatus)
	}

	e.clock.Advance(time.Hour)
	disputed, err := e.bookings.Dispute(ctx, e.customer, b.ID)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if !disputed.Disputed || disputed.PaymentStatus != booking.PaymentPaid {
		t.Fatalf("dispute result = %+v", disputed)
	}

	types := e.eventTypes(t, b.ID)
	if !hasEvent(types, model.EventTypeCODAttested) || !hasEvent(types, model.EventTypeCODDisputed) {
		t.Fatalf("events = %v", types)
	}
}

func TestAccountService_SignupLogin(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	if _, err := e.accounts.Signup(ctx, SignupInput{Email: "ANNA@example.com", Password: "password9", Name: "Dup"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate signup: err = %v", err)
	}
	if _, err := e.accounts.Signup(ctx, SignupInput{Email: "x@example.com", Password: "short", Name: "X"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("weak password: err = %v", err)
	}
	if _, err := e.accounts.Signup(ctx, SignupInput{Email: "y@example.com", Password: "password1", Name: "Y", Role: model.RoleAdmin}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("admin self-signup: err = %v", err)
	}

	s, err := e.accounts.Login(ctx, "anna@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.Role != model.RoleCustomer {
		t.Fatalf("role = %s", s.Role)
	}
	if _, err := e.accounts.Login(ctx, "anna@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := e.accounts.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v", err)
	}

	me, err := e.accounts.Me(ctx, e.worker)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Worker == nil || me.Role != model.RoleWorker || me.ProfileComplete {
		t.Fatalf("worker profile = %+v", me)
	}
}

func TestAccountService_Authenticate_InactiveUser(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	s, err := e.accounts.Login(ctx, "anna@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	err = e.db.Model(&model.User{}).Where("id = ?", e.customer.UserID).Update("is_active", false).Error
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err = e.accounts.Authenticate(ctx, s.Token)
	if !errors.Is(err, auth.ErrInvalidToken) || !errors.Is(err, auth.ErrAccountInactive) {
		t.Fatalf("inactive user: err = %v", err)
	}
	if _, err := e.accounts.Authenticate(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("garbage token: err = %v", err)
	}
}

type captureNotifier struct {
	emails []string
	tokens []string
}

func (c *captureNotifier) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	c.emails = append(c.emails, email)
	c.tokens = append(c.tokens, token)
	return nil
}

func TestAccountService_PasswordReset(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	n := &captureNotifier{}
	accounts := NewAccountService(e.store, auth.NewIssuer("test-secret", time.Hour), WithResetNotifier(n))

	if err := accounts.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	if len(n.tokens) != 0 {
		t.Fatalf("token issued for unknown email")
	}
	if err := accounts.RequestPasswordReset(ctx, "not-an-email"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad email: err = %v", err)
	}

	if err := accounts.RequestPasswordReset(ctx, " ANNA@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(n.tokens) != 1 || n.emails[0] != "anna@example.com" {
		t.Fatalf("notifier got %v", n.emails)
	}
	token := n.tokens[0]

	if err := accounts.ConfirmPasswordReset(ctx, "garbage", "new-password"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("garbage token: err = %v", err)
	}
	if err := accounts.ConfirmPasswordReset(ctx, token, "short"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("weak password: err = %v", err)
	}
	if err := accounts.ConfirmPasswordReset(ctx, token, "new-password"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := accounts.Login(ctx, "anna@example.com", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := accounts.Login(ctx, "anna@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: err = %v", err)
	}

	// Пароль сменился, значит токен больше не подходит.
	if err := accounts.ConfirmPasswordReset(ctx, token, "third-password"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("reused token: err = %v", err)
	}

	var resets int64
	if err := e.db.Model(&model.Event{}).Where("event_type = ?", model.EventTypePasswordReset).Count(&resets).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if resets != 1 {
		t.Fatalf("password reset events = %d, want 1", resets)
	}

	// Сессионный токен не годится для сброса.
	s, _ := accounts.Login(ctx, "anna@example.com", "new-password")
	if err := accounts.ConfirmPasswordReset(ctx, s.Token, "fourth-password"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("session token accepted for reset: err = %v", err)
	}
}

func TestCatalogService_SeedCatalog_SkipsExisting(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	n, err := e.catalog.SeedCatalog(ctx, strings.NewReader(`
services:
  - name: Plumbing
    base_cost: 999
  - name: cleaning
    description: deep cleaning
    base_cost: 250
`))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 1 {
		t.Fatalf("created = %d, want 1", n)
	}

	workers, err := e.catalog.ListWorkers(ctx, e.service)
	if err != nil {
		t.Fatalf("list workers: %v", err)
	}
	if len(workers) != 1 || workers[0].ID != e.workerID {
		t.Fatalf("workers = %+v", workers)
	}
}
