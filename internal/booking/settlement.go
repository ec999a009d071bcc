package booking

import (
	"time"

	"github.com/google/uuid"
)

// Settlement — подтверждение оплаты. Построить его можно только через VerifyOnline
// или AttestCash, поэтому paymentStatus = paid не выставляется никаким другим путём.
type Settlement struct {
	bookingID uuid.UUID
	method    PaymentMethod
	reference string
	at        time.Time
}

func (s Settlement) Method() PaymentMethod { return s.method }
func (s Settlement) Reference() string     { return s.reference }
func (s Settlement) At() time.Time         { return s.at }

// SignatureVerifier проверяет подпись колбэка платёжного шлюза.
type SignatureVerifier interface {
	VerifySignature(orderID, paymentID, signature string) bool
}

// OnlineOrder — заказ, заведённый в шлюзе для этого бронирования.
type OnlineOrder struct {
	BookingID uuid.UUID
	OrderID   string
	Amount    int64
}

// GatewayCallback — подписанное подтверждение от шлюза.
type GatewayCallback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// ChoosePaymentMethod — выбор делается один раз; повтор того же способа допустим (новая попытка).
func (b *Booking) ChoosePaymentMethod(m PaymentMethod) error {
	if m != MethodOnline && m != MethodCOD {
		return &ValidationError{Field: "method", Message: "must be online or cod"}
	}
	if !b.Status.IsActive() {
		return invalid(b, EventChooseMethod, "job is not active")
	}
	if !b.ReceiptSent {
		return invalid(b, EventChooseMethod, "receipt has not been sent")
	}
	if b.PaymentStatus == PaymentPaid {
		return invalid(b, EventChooseMethod, "booking is already paid")
	}
	if b.PaymentMethod != MethodUnset && b.PaymentMethod != m {
		return invalid(b, EventChooseMethod, "payment method already chosen")
	}

	b.PaymentMethod = m
	return nil
}

// VerifyOnline сверяет колбэк с заказом и подписью. Ничего не меняет в заказе.
func VerifyOnline(b *Booking, order OnlineOrder, cb GatewayCallback, v SignatureVerifier, now time.Time) (Settlement, error) {
	if order.BookingID != b.ID || order.OrderID == "" || cb.OrderID != order.OrderID || cb.PaymentID == "" {
		return Settlement{}, ErrOrderMismatch
	}
	if !v.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		return Settlement{}, ErrSignatureMismatch
	}
	return Settlement{
		bookingID: b.ID,
		method:    MethodOnline,
		reference: cb.PaymentID,
		at:        now,
	}, nil
}

// AttestCash — исполнитель подтверждает, что получил наличные. Шлюза нет,
// поэтому подтверждение держится только на слове исполнителя и попадает в аудит.
func AttestCash(b *Booking, w Worker, now time.Time) (Settlement, error) {
	if w.ID != b.WorkerID {
		return Settlement{}, ErrWrongWorker
	}
	if b.PaymentMethod != MethodCOD {
		return Settlement{}, invalid(b, EventSettle, "booking is not cash on delivery")
	}
	if !w.AllowsCOD {
		return Settlement{}, invalid(b, EventSettle, "worker does not accept cash on delivery")
	}
	return Settlement{
		bookingID: b.ID,
		method:    MethodCOD,
		reference: "cod:" + w.ID.String(),
		at:        now,
	}, nil
}

// Settle — единственное место, где paymentStatus становится paid.
func (b *Booking) Settle(s Settlement) error {
	if s.bookingID == uuid.Nil || s.bookingID != b.ID {
		return invalid(b, EventSettle, "settlement does not belong to this booking")
	}
	if !b.Status.IsActive() {
		return invalid(b, EventSettle, "job is not active")
	}
	if !b.ReceiptSent {
		return invalid(b, EventSettle, "receipt has not been sent")
	}
	if b.PaymentStatus == PaymentPaid {
		return invalid(b, EventSettle, "booking is already paid")
	}
	if b.PaymentMethod != s.method {
		return invalid(b, EventSettle, "payment method mismatch")
	}

	at := s.at
	b.PaymentStatus = PaymentPaid
	b.PaidAt = &at
	b.PaymentReference = s.reference
	return nil
}

// DisputeCash — клиент оспаривает подтверждение наличной оплаты. Оплата не откатывается,
// заказ лишь помечается для разбора.
func (b *Booking) DisputeCash(now time.Time, window time.Duration) error {
	if b.PaymentMethod != MethodCOD || b.PaymentStatus != PaymentPaid || b.PaidAt == nil {
		return invalid(b, EventDispute, "no cash payment to dispute")
	}
	if b.Disputed {
		return invalid(b, EventDispute, "already disputed")
	}
	if now.Sub(*b.PaidAt) >= window {
		return invalid(b, EventDispute, "dispute period expired")
	}
	b.Disputed = true
	return nil
}
