package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentMethod string

const (
	MethodUnset  PaymentMethod = "unset"
	MethodOnline PaymentMethod = "online"
	MethodCOD    PaymentMethod = "cod"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Event — внешнее событие, которое пытается продвинуть заказ.
type Event string

const (
	EventAccept       Event = "accept"
	EventStart        Event = "start"
	EventCancel       Event = "cancel"
	EventAddItem      Event = "tariff_add"
	EventUpdateItem   Event = "tariff_update"
	EventRemoveItem   Event = "tariff_remove"
	EventSendReceipt  Event = "send_receipt"
	EventChooseMethod Event = "choose_payment_method"
	EventSettle       Event = "settle_payment"
	EventComplete     Event = "complete"
	EventRate         Event = "rate"
	EventDispute      Event = "dispute_cod"
)

// DefaultCancelWindow — сколько после запроса клиент может отменить заказ сам.
const DefaultCancelWindow = 5 * time.Minute

// DefaultDisputeWindow — сколько после подтверждения наличной оплаты клиент может её оспорить.
const DefaultDisputeWindow = 48 * time.Hour

type TariffItem struct {
	Label       string
	Amount      int64
	Explanation string
}

// Booking — заказ услуги. Все изменения идут только через методы переходов;
// при ошибке состояние не меняется.
type Booking struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	WorkerID    uuid.UUID
	ServiceType string
	Description string

	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus

	TariffItems []TariffItem
	BasePrice   int64
	ReceiptSent bool

	// 0 — оценки нет.
	Rating int

	RequestedAt time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	PaidAt      *time.Time

	PaymentReference string
	Disputed         bool
}

// New создаёт заказ в состоянии requested.
func New(id, customerID, workerID uuid.UUID, serviceType, description string, basePrice int64, requestedAt time.Time) *Booking {
	return &Booking{
		ID:            id,
		CustomerID:    customerID,
		WorkerID:      workerID,
		ServiceType:   serviceType,
		Description:   description,
		Status:        StatusRequested,
		PaymentMethod: MethodUnset,
		PaymentStatus: PaymentPending,
		BasePrice:     basePrice,
		RequestedAt:   requestedAt,
	}
}

// Worker — срез состояния исполнителя, нужный для проверок переходов.
type Worker struct {
	ID           uuid.UUID
	Available    bool
	HasActiveJob bool
	AllowsCOD    bool
}

// IsActive — заказ занимает исполнителя.
func (s Status) IsActive() bool {
	return s == StatusAccepted || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Clone возвращает независимую копию (позиции тарифа и указатели на время копируются).
func (b *Booking) Clone() *Booking {
	c := *b
	c.TariffItems = append([]TariffItem(nil), b.TariffItems...)
	c.AcceptedAt = cloneTime(b.AcceptedAt)
	c.StartedAt = cloneTime(b.StartedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.PaidAt = cloneTime(b.PaidAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
