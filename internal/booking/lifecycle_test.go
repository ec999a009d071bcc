package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type staticVerifier bool

func (v staticVerifier) VerifySignature(_, _, _ string) bool { return bool(v) }

var t0 = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newRequested(t *testing.T) (*Booking, Worker) {
	t.Helper()
	workerID := uuid.New()
	b := New(uuid.New(), uuid.New(), workerID, "plumbing", "leaking tap", 100, t0)
	return b, Worker{ID: workerID, Available: true, AllowsCOD: true}
}

func TestBooking_CancelWindow_Scenario(t *testing.T) {
	b, w := newRequested(t)
	if err := b.Accept(w, t0.Add(1*time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if b.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", b.Status)
	}
	if err := b.Cancel(t0.Add(4*time.Minute), DefaultCancelWindow); err != nil {
		t.Fatalf("cancel at T0+4m: %v", err)
	}
	if b.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}

	fresh, w2 := newRequested(t)
	if err := fresh.Accept(w2, t0.Add(1*time.Minute)); err != nil {
		t.Fatalf("accept fresh: %v", err)
	}
	err := fresh.Cancel(t0.Add(6*time.Minute), DefaultCancelWindow)
	var it *InvalidTransition
	if !errors.As(err, &it) {
		t.Fatalf("cancel at T0+6m: err = %v, want InvalidTransition", err)
	}
	if it.From != StatusAccepted || it.Event != EventCancel {
		t.Fatalf("InvalidTransition = %+v", it)
	}
	if fresh.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", fresh.Status)
	}
	if fresh.CancelledAt != nil {
		t.Fatalf("cancelled_at set on failed cancel")
	}
}

func TestBooking_TariffPaymentRating_Scenario(t *testing.T) {
	b, w := newRequested(t)
	if err := b.Accept(w, t0.Add(time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := b.AddItem(TariffItem{Label: "parts", Amount: 50}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := b.SendReceipt(t0.Add(2 * time.Minute)); err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if !b.ReceiptSent {
		t.Fatalf("receipt_sent = false")
	}
	if got := b.Total(); got != 150 {
		t.Fatalf("total = %d, want 150", got)
	}

	err := b.UpdateItem(0, TariffItem{Label: "parts", Amount: 10})
	if !IsInvalidTransition(err) {
		t.Fatalf("update after receipt: err = %v, want InvalidTransition", err)
	}
	if b.TariffItems[0].Amount != 50 {
		t.Fatalf("tariff changed after failed update: %+v", b.TariffItems)
	}

	if err := b.ChoosePaymentMethod(MethodOnline); err != nil {
		t.Fatalf("choose online: %v", err)
	}
	order := OnlineOrder{BookingID: b.ID, OrderID: "order_1", Amount: 15000}
	s, err := VerifyOnline(b, order, GatewayCallback{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}, staticVerifier(true), t0.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("verify online: %v", err)
	}
	if err := b.Settle(s); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if b.PaymentStatus != PaymentPaid {
		t.Fatalf("payment_status = %s, want paid", b.PaymentStatus)
	}

	if err := b.Complete(t0.Add(30 * time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if b.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", b.Status)
	}

	if err := b.Rate(5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if b.Rating != 5 {
		t.Fatalf("rating = %d, want 5", b.Rating)
	}
	if err := b.Rate(4); !IsInvalidTransition(err) {
		t.Fatalf("second rating: err = %v, want InvalidTransition", err)
	}
	if b.Rating != 5 {
		t.Fatalf("rating overwritten: %d", b.Rating)
	}
}

func TestBooking_Accept_WorkerGuards(t *testing.T) {
	b, w := newRequested(t)

	w.Available = false
	if err := b.Accept(w, t0); !IsInvalidTransition(err) {
		t.Fatalf("unavailable worker: err = %v", err)
	}

	w.Available = true
	w.HasActiveJob = true
	if err := b.Accept(w, t0); !IsInvalidTransition(err) {
		t.Fatalf("busy worker: err = %v", err)
	}

	other := Worker{ID: uuid.New(), Available: true}
	if err := b.Accept(other, t0); !errors.Is(err, ErrWrongWorker) {
		t.Fatalf("other worker: err = %v, want ErrWrongWorker", err)
	}

	if b.Status != StatusRequested || b.AcceptedAt != nil {
		t.Fatalf("booking mutated by failed accepts: %+v", b)
	}
}

func TestBooking_Complete_RequiresPayment(t *testing.T) {
	b, w := newRequested(t)
	_ = b.Accept(w, t0)
	_ = b.Start(t0.Add(time.Minute))

	if err := b.Complete(t0.Add(time.Hour)); !IsInvalidTransition(err) {
		t.Fatalf("complete unpaid: err = %v", err)
	}
	if b.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", b.Status)
	}
}

func TestBooking_CancelAfterStart_Fails(t *testing.T) {
	b, w := newRequested(t)
	_ = b.Accept(w, t0)
	_ = b.Start(t0.Add(time.Minute))

	if err := b.Cancel(t0.Add(2*time.Minute), DefaultCancelWindow); !IsInvalidTransition(err) {
		t.Fatalf("cancel in progress: err = %v", err)
	}
}

func TestBooking_CashOnDelivery(t *testing.T) {
	b, w := newRequested(t)
	_ = b.Accept(w, t0)
	_ = b.AddItem(TariffItem{Label: "labour", Amount: 200})
	_ = b.SendReceipt(t0)

	if _, err := AttestCash(b, w, t0); !IsInvalidTransition(err) {
		t.Fatalf("attest before choosing cod: err = %v", err)
	}
	if err := b.ChoosePaymentMethod(MethodCOD); err != nil {
		t.Fatalf("choose cod: %v", err)
	}
	if err := b.ChoosePaymentMethod(MethodOnline); !IsInvalidTransition(err) {
		t.Fatalf("switch method: err = %v", err)
	}

	noCash := w
	noCash.AllowsCOD = false
	if _, err := AttestCash(b, noCash, t0); !IsInvalidTransition(err) {
		t.Fatalf("worker without cod: err = %v", err)
	}

	s, err := AttestCash(b, w, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	if err := b.Settle(s); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if b.PaymentStatus != PaymentPaid || b.PaymentReference == "" {
		t.Fatalf("not settled: %+v", b)
	}
	if err := b.Settle(s); !IsInvalidTransition(err) {
		t.Fatalf("double settle: err = %v", err)
	}

	if err := b.DisputeCash(t0.Add(2*time.Hour), DefaultDisputeWindow); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if !b.Disputed || b.PaymentStatus != PaymentPaid {
		t.Fatalf("dispute must flag without reverting payment: %+v", b)
	}
	if err := b.DisputeCash(t0.Add(3*time.Hour), DefaultDisputeWindow); !IsInvalidTransition(err) {
		t.Fatalf("second dispute: err = %v", err)
	}
}

func TestVerifyOnline_Rejects(t *testing.T) {
	b, _ := newRequested(t)
	order := OnlineOrder{BookingID: b.ID, OrderID: "order_9"}

	if _, err := VerifyOnline(b, order, GatewayCallback{OrderID: "order_9", PaymentID: "pay", Signature: "x"}, staticVerifier(false), t0); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("bad signature: err = %v", err)
	}
	if _, err := VerifyOnline(b, order, GatewayCallback{OrderID: "order_other", PaymentID: "pay"}, staticVerifier(true), t0); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("order mismatch: err = %v", err)
	}
	foreign := OnlineOrder{BookingID: uuid.New(), OrderID: "order_9"}
	if _, err := VerifyOnline(b, foreign, GatewayCallback{OrderID: "order_9", PaymentID: "pay"}, staticVerifier(true), t0); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("foreign order: err = %v", err)
	}
}

func TestSettle_ZeroValueRejected(t *testing.T) {
	b, w := newRequested(t)
	_ = b.Accept(w, t0)
	_ = b.AddItem(TariffItem{Label: "x", Amount: 1})
	_ = b.SendReceipt(t0)
	_ = b.ChoosePaymentMethod(MethodOnline)

	if err := b.Settle(Settlement{}); !IsInvalidTransition(err) {
		t.Fatalf("zero settlement: err = %v", err)
	}
	if b.PaymentStatus != PaymentPending {
		t.Fatalf("payment_status = %s", b.PaymentStatus)
	}
}

func TestBooking_Rate_Validation(t *testing.T) {
	b, _ := newRequested(t)
	var verr *ValidationError
	if err := b.Rate(6); !errors.As(err, &verr) {
		t.Fatalf("rate 6: err = %v", err)
	}
	if err := b.Rate(3); !IsInvalidTransition(err) {
		t.Fatalf("rate unpaid: err = %v", err)
	}
}

func TestTariff_ItemValidation(t *testing.T) {
	b, w := newRequested(t)
	_ = b.Accept(w, t0)

	var verr *ValidationError
	if err := b.AddItem(TariffItem{Label: "  ", Amount: 5}); !errors.As(err, &verr) || verr.Field != "label" {
		t.Fatalf("blank label: err = %v", err)
	}
	if err := b.AddItem(TariffItem{Label: "parts", Amount: -1}); !errors.As(err, &verr) || verr.Field != "amount" {
		t.Fatalf("negative amount: err = %v", err)
	}
	if err := b.RemoveItem(0); !errors.As(err, &verr) || verr.Field != "index" {
		t.Fatalf("remove from empty: err = %v", err)
	}
	if err := b.SendReceipt(t0); !IsInvalidTransition(err) {
		t.Fatalf("receipt with empty tariff: err = %v", err)
	}
}
