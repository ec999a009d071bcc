package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

const (
	maxDescriptionLen = 2000
	maxUrgencyLen     = 32
	maxContactDates   = 5
)

type Options struct {
	CancelWindow  time.Duration
	DisputeWindow time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CancelWindow <= 0 {
		o.CancelWindow = booking.DefaultCancelWindow
	}
	if o.DisputeWindow <= 0 {
		o.DisputeWindow = booking.DefaultDisputeWindow
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// BookingService ведёт заказ по жизненному циклу. Каждое изменение идёт одной
// транзакцией: чтение, переход, сохранение с проверкой версии, события аудита.
type BookingService struct {
	store  *repository.Store
	opts   Options
	tracer trace.Tracer
}

func NewBookingService(store *repository.Store, opts Options) *BookingService {
	return &BookingService{
		store:  store,
		opts:   opts.withDefaults(),
		tracer: otel.Tracer("homeservice/service"),
	}
}

func (s *BookingService) now() time.Time { return s.opts.Now() }

// CancelWindow — окно отмены, которое видит клиентская сторона.
func (s *BookingService) CancelWindow() time.Duration { return s.opts.CancelWindow }

type CreateBookingInput struct {
	WorkerID     uuid.UUID
	ServiceID    uuid.UUID
	Description  string
	Urgency      string
	ContactDates []string
}

func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (*model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.Create")
	defer span.End()

	if !actor.IsCustomer() {
		return nil, ErrForbidden
	}
	if in.WorkerID == uuid.Nil || in.ServiceID == uuid.Nil {
		return nil, invalidArg("workerId and serviceId are required")
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) > maxDescriptionLen {
		return nil, invalidArg("description is too long")
	}
	urgency := strings.TrimSpace(in.Urgency)
	if len(urgency) > maxUrgencyLen {
		return nil, invalidArg("urgency is too long")
	}
	dates, err := booking.NormalizeContactDates(in.ContactDates)
	if err != nil {
		return nil, err
	}
	if len(dates) > maxContactDates {
		return nil, invalidArg("at most %d contact dates", maxContactDates)
	}
	rawDates, err := json.Marshal(dates)
	if err != nil {
		return nil, fmt.Errorf("marshal contact dates: %w", err)
	}

	var out *model.Booking
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		u, err := tx.Users.FindByID(ctx, actor.UserID)
		if err != nil {
			return notFound("user", err)
		}
		if !u.ProfileComplete() {
			return ErrProfileIncomplete
		}

		offer, err := tx.Workers.GetOffer(ctx, in.WorkerID, in.ServiceID)
		if err != nil {
			return notFound("worker service", err)
		}
		if offer.Service == nil || !offer.Service.IsActive {
			return invalidArg("service is not available")
		}

		d := booking.New(uuid.New(), actor.UserID, in.WorkerID, offer.Service.Name, desc, offer.Charge, s.now())
		row := &model.Booking{
			ID:           d.ID,
			CustomerID:   d.CustomerID,
			WorkerID:     d.WorkerID,
			ServiceID:    in.ServiceID,
			ServiceType:  d.ServiceType,
			Description:  d.Description,
			Urgency:      urgency,
			ContactDates: datatypes.JSON(rawDates),
			RequestedAt:  d.RequestedAt,
		}
		row.ApplyDomain(d)
		if err := tx.Bookings.Create(ctx, row); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		_, err = tx.Events.Append(ctx, model.EventTypeBookingCreated, &actor.UserID, &row.ID, map[string]any{
			"workerId":  row.WorkerID,
			"serviceId": row.ServiceID,
			"basePrice": row.BasePrice,
		})
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Get возвращает заказ его клиенту, назначенному исполнителю или администратору.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	row, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("booking", err)
	}
	if actor.IsAdmin() || row.CustomerID == actor.UserID {
		return row, nil
	}
	if actor.IsWorker() {
		w, err := s.store.Workers.GetByUserID(ctx, actor.UserID)
		if err == nil && w.ID == row.WorkerID {
			return row, nil
		}
	}
	return nil, ErrForbidden
}

// List — заказы клиента или исполнителя, новые сверху.
func (s *BookingService) List(ctx context.Context, actor Actor) ([]model.Booking, error) {
	switch {
	case actor.IsCustomer():
		return s.store.Bookings.ListByCustomer(ctx, actor.UserID)
	case actor.IsWorker():
		w, err := s.store.Workers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, notFound("worker", err)
		}
		return s.store.Bookings.ListByWorker(ctx, w.ID)
	default:
		return nil, ErrForbidden
	}
}

func (s *BookingService) Accept(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "Accept", actor, id, func(ctx context.Context, c *change) error {
		w, err := c.requireWorker(ctx, actor, true)
		if err != nil {
			return err
		}
		dw, err := c.domainWorker(ctx, w)
		if err != nil {
			return err
		}
		if err := c.b.Accept(dw, s.now()); err != nil {
			return err
		}
		if err := c.tx.Workers.SetAvailability(ctx, w.ID, false); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		c.emit(model.EventTypeBookingAccepted, map[string]any{"workerId": w.ID})
		c.emit(model.EventTypeAvailability, map[string]any{"workerId": w.ID, "available": false})
		return nil
	})
}

func (s *BookingService) Start(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "Start", actor, id, func(ctx context.Context, c *change) error {
		if _, err := c.requireWorker(ctx, actor, false); err != nil {
			return err
		}
		if err := c.b.Start(s.now()); err != nil {
			return err
		}
		c.emit(model.EventTypeBookingStarted, nil)
		return nil
	})
}

// Cancel — отмена клиентом в пределах окна. Если исполнитель уже принял заказ,
// он снова становится доступен.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "Cancel", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}
		wasAccepted := c.b.Status == booking.StatusAccepted
		if err := c.b.Cancel(s.now(), s.opts.CancelWindow); err != nil {
			return err
		}
		c.emit(model.EventTypeBookingCancelled, map[string]any{"previousStatus": c.row.Status})
		if wasAccepted {
			if err := c.tx.Workers.SetAvailability(ctx, c.row.WorkerID, true); err != nil {
				return fmt.Errorf("set availability: %w", err)
			}
			c.emit(model.EventTypeAvailability, map[string]any{"workerId": c.row.WorkerID, "available": true})
		}
		return nil
	})
}

func (s *BookingService) AddItem(ctx context.Context, actor Actor, id uuid.UUID, item booking.TariffItem) (*model.Booking, error) {
	return s.editTariff(ctx, "AddItem", actor, id, func(b *booking.Booking) error {
		return b.AddItem(item)
	})
}

func (s *BookingService) UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, index int, item booking.TariffItem) (*model.Booking, error) {
	return s.editTariff(ctx, "UpdateItem", actor, id, func(b *booking.Booking) error {
		return b.UpdateItem(index, item)
	})
}

func (s *BookingService) RemoveItem(ctx context.Context, actor Actor, id uuid.UUID, index int) (*model.Booking, error) {
	return s.editTariff(ctx, "RemoveItem", actor, id, func(b *booking.Booking) error {
		return b.RemoveItem(index)
	})
}

func (s *BookingService) editTariff(
	ctx context.Context,
	op string,
	actor Actor,
	id uuid.UUID,
	edit func(b *booking.Booking) error,
) (*model.Booking, error) {
	return s.mutate(ctx, op, actor, id, func(ctx context.Context, c *change) error {
		if _, err := c.requireWorker(ctx, actor, false); err != nil {
			return err
		}
		if err := edit(c.b); err != nil {
			return err
		}
		c.emit(model.EventTypeTariffUpdated, map[string]any{
			"items": c.b.TariffItems,
			"total": c.b.Total(),
		})
		return nil
	})
}

func (s *BookingService) SendReceipt(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "SendReceipt", actor, id, func(ctx context.Context, c *change) error {
		if _, err := c.requireWorker(ctx, actor, false); err != nil {
			return err
		}
		if err := c.b.SendReceipt(s.now()); err != nil {
			return err
		}
		c.emit(model.EventTypeReceiptSent, map[string]any{
			"items": c.b.TariffItems,
			"total": c.b.Total(),
		})
		return nil
	})
}

// ChoosePaymentMethod — клиент выбирает online или cod. Наличные только если
// исполнитель их принимает.
func (s *BookingService) ChoosePaymentMethod(ctx context.Context, actor Actor, id uuid.UUID, method booking.PaymentMethod) (*model.Booking, error) {
	return s.mutate(ctx, "ChoosePaymentMethod", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}
		if method == booking.MethodCOD {
			w, err := c.tx.Workers.GetByID(ctx, c.row.WorkerID)
			if err != nil {
				return notFound("worker", err)
			}
			if !w.AllowsCOD {
				return &booking.InvalidTransition{
					From:   c.b.Status,
					Event:  booking.EventChooseMethod,
					Reason: "worker does not accept cash on delivery",
				}
			}
		}
		if err := c.b.ChoosePaymentMethod(method); err != nil {
			return err
		}
		c.emit(model.EventTypePaymentMethodSet, map[string]any{"method": method})
		return nil
	})
}

// Complete — закрытие оплаченной работы: начисление исполнителю, исполнитель снова доступен.
func (s *BookingService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "Complete", actor, id, func(ctx context.Context, c *change) error {
		w, err := c.requireWorker(ctx, actor, true)
		if err != nil {
			return err
		}
		if err := c.b.Complete(s.now()); err != nil {
			return err
		}
		earning := &model.WorkerEarning{WorkerID: w.ID, BookingID: c.row.ID, Amount: c.b.Total()}
		if err := c.tx.Workers.AddEarning(ctx, earning); err != nil {
			return fmt.Errorf("add earning: %w", err)
		}
		if err := c.tx.Workers.SetAvailability(ctx, w.ID, true); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		c.emit(model.EventTypeBookingCompleted, map[string]any{"earning": earning.Amount})
		c.emit(model.EventTypeAvailability, map[string]any{"workerId": w.ID, "available": true})
		return nil
	})
}

func (s *BookingService) Rate(ctx context.Context, actor Actor, id uuid.UUID, rating int) (*model.Booking, error) {
	return s.mutate(ctx, "Rate", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}
		if err := c.b.Rate(rating); err != nil {
			return err
		}
		review := &model.Review{
			BookingID:  c.row.ID,
			CustomerID: actor.UserID,
			WorkerID:   c.row.WorkerID,
			Rating:     rating,
		}
		if err := c.tx.Workers.AddReview(ctx, review); err != nil {
			return fmt.Errorf("add review: %w", err)
		}
		if err := c.tx.Workers.RefreshRating(ctx, c.row.WorkerID); err != nil {
			return fmt.Errorf("refresh rating: %w", err)
		}
		c.emit(model.EventTypeBookingRated, map[string]any{"rating": rating})
		return nil
	})
}

// Dispute — клиент оспаривает подтверждённую исполнителем наличную оплату.
func (s *BookingService) Dispute(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.mutate(ctx, "Dispute", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}
		if err := c.b.DisputeCash(s.now(), s.opts.DisputeWindow); err != nil {
			return err
		}
		c.emit(model.EventTypeCODDisputed, map[string]any{"reference": c.b.PaymentReference})
		return nil
	})
}

type WorkerHome struct {
	Worker    *model.Worker
	Requests  []model.Booking
	ActiveJob *model.Booking
	Earnings  int64
}

// WorkerHome — главный экран исполнителя: входящие заявки и текущая работа.
func (s *BookingService) WorkerHome(ctx context.Context, actor Actor) (*WorkerHome, error) {
	if !actor.IsWorker() {
		return nil, ErrForbidden
	}
	w, err := s.store.Workers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound("worker", err)
	}
	requests, err := s.store.Bookings.ListByWorker(ctx, w.ID, booking.StatusRequested)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	active, err := s.store.Bookings.ActiveJobForWorker(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("active job: %w", err)
	}
	completed, err := s.store.Bookings.ListByWorker(ctx, w.ID, booking.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed: %w", err)
	}

	home := &WorkerHome{Worker: w, Requests: requests, ActiveJob: active}
	for _, b := range completed {
		home.Earnings += b.Total()
	}
	return home, nil
}

// SetAvailability — исполнитель сам включает или выключает приём заказов.
func (s *BookingService) SetAvailability(ctx context.Context, actor Actor, available bool) (*model.Worker, error) {
	if !actor.IsWorker() {
		return nil, ErrForbidden
	}
	var out *model.Worker
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		w, err := tx.Workers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return notFound("worker", err)
		}
		if err := tx.Workers.SetAvailability(ctx, w.ID, available); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		w.IsAvailable = available
		_, err = tx.Events.Append(ctx, model.EventTypeAvailability, &actor.UserID, nil, map[string]any{
			"workerId":  w.ID,
			"available": available,
		})
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Events — журнал аудита заказа.
func (s *BookingService) Events(ctx context.Context, actor Actor, id uuid.UUID) ([]model.Event, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.Events.ListByBooking(ctx, id)
}

// errUnchanged — переход не нужен (повторный запрос), сохранять нечего.
var errUnchanged = errors.New("unchanged")

type pendingEvent struct {
	typ     model.EventType
	payload any
}

// change — состояние одной транзакции над заказом.
type change struct {
	tx     *repository.Store
	row    *model.Booking
	b      *booking.Booking
	events []pendingEvent
}

func (c *change) emit(typ model.EventType, payload any) {
	c.events = append(c.events, pendingEvent{typ: typ, payload: payload})
}

func (c *change) requireCustomer(actor Actor) error {
	if !actor.IsCustomer() || c.row.CustomerID != actor.UserID {
		return ErrForbidden
	}
	return nil
}

// requireWorker проверяет, что actor — назначенный на заказ исполнитель.
// forUpdate блокирует строку исполнителя до конца транзакции.
func (c *change) requireWorker(ctx context.Context, actor Actor, forUpdate bool) (*model.Worker, error) {
	if !actor.IsWorker() {
		return nil, ErrForbidden
	}
	w, err := c.tx.Workers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, ErrForbidden
	}
	if w.ID != c.row.WorkerID {
		return nil, ErrForbidden
	}
	if forUpdate {
		if w, err = c.tx.Workers.GetForUpdate(ctx, w.ID); err != nil {
			return nil, notFound("worker", err)
		}
	}
	return w, nil
}

func (c *change) domainWorker(ctx context.Context, w *model.Worker) (booking.Worker, error) {
	active, err := c.tx.Bookings.ActiveJobForWorker(ctx, w.ID)
	if err != nil {
		return booking.Worker{}, fmt.Errorf("active job: %w", err)
	}
	return booking.Worker{
		ID:           w.ID,
		Available:    w.IsAvailable,
		HasActiveJob: active != nil,
		AllowsCOD:    w.AllowsCOD,
	}, nil
}

func (s *BookingService) mutate(
	ctx context.Context,
	op string,
	actor Actor,
	id uuid.UUID,
	fn func(ctx context.Context, c *change) error,
) (*model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "BookingService."+op,
		trace.WithAttributes(attribute.String("booking.id", id.String())),
	)
	defer span.End()

	var out *model.Booking
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		row, err := tx.Bookings.GetByID(ctx, id)
		if err != nil {
			return notFound("booking", err)
		}

		c := &change{tx: tx, row: row, b: row.ToDomain()}
		if err := fn(ctx, c); err != nil {
			if errors.Is(err, errUnchanged) {
				out = row
				return nil
			}
			return err
		}

		row.ApplyDomain(c.b)
		if err := tx.Bookings.Save(ctx, row); err != nil {
			return err
		}
		for _, e := range c.events {
			if _, err := tx.Events.Append(ctx, e.typ, &actor.UserID, &row.ID, e.payload); err != nil {
				return err
			}
		}
		out = row
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.status", string(out.Status)))
	return out, nil
}
