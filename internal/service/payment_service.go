package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/gateway"
	"github.com/Leganyst/homeservice-platform/internal/model"
)

// Gateway — то, что сервису нужно от платёжного шлюза.
type Gateway interface {
	booking.SignatureVerifier
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	KeyID() string
	Currency() string
}

// PaymentService — оплата онлайн через шлюз и наличными исполнителю.
type PaymentService struct {
	bookings *BookingService
	gw       Gateway
}

func NewPaymentService(bookings *BookingService, gw Gateway) *PaymentService {
	return &PaymentService{bookings: bookings, gw: gw}
}

// OrderView — то, что клиенту нужно для открытия формы оплаты.
type OrderView struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
	Receipt  string `json:"receipt"`
}

// CreateOrder заводит заказ в шлюзе на сумму по чеку (в минимальных единицах валюты)
// и закрепляет за заказом способ оплаты online. Повторный вызов отдаёт ещё не
// оплаченный заказ на ту же сумму, не обращаясь к шлюзу.
func (s *PaymentService) CreateOrder(ctx context.Context, actor Actor, id uuid.UUID) (*OrderView, error) {
	ctx, span := s.bookings.tracer.Start(ctx, "PaymentService.CreateOrder")
	defer span.End()

	row, err := s.bookings.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("booking", err)
	}
	if !actor.IsCustomer() || row.CustomerID != actor.UserID {
		return nil, ErrForbidden
	}

	// Проверяем переход на копии до похода в шлюз.
	draft := row.ToDomain()
	if err := draft.ChoosePaymentMethod(booking.MethodOnline); err != nil {
		return nil, err
	}
	total := draft.Total()
	if total <= 0 {
		return nil, invalidArg("invalid total amount for payment")
	}

	receipt := fmt.Sprintf("Booking_%s_Receipt", row.ID)
	open, err := s.openOrder(ctx, row, total*100)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return &OrderView{
			OrderID:  open.OrderID,
			Amount:   open.Amount,
			Currency: open.Currency,
			Key:      s.gw.KeyID(),
			Receipt:  receipt,
		}, nil
	}

	notes := map[string]string{
		"booking_id": row.ID.String(),
		"user_id":    actor.UserID.String(),
	}
	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		Amount:         total * 100,
		Currency:       s.gw.Currency(),
		Receipt:        receipt,
		PaymentCapture: 1,
		Notes:          notes,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	rawNotes, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}

	_, err = s.bookings.mutate(ctx, "CreateOrder", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}
		firstChoice := c.b.PaymentMethod == booking.MethodUnset
		if err := c.b.ChoosePaymentMethod(booking.MethodOnline); err != nil {
			return err
		}
		err := c.tx.Payments.CreateOrder(ctx, &model.GatewayOrder{
			BookingID: c.row.ID,
			OrderID:   order.ID,
			Amount:    total * 100,
			Currency:  s.gw.Currency(),
			Status:    model.GatewayOrderCreated,
			Notes:     datatypes.JSON(rawNotes),
		})
		if err != nil {
			return fmt.Errorf("save gateway order: %w", err)
		}
		if firstChoice {
			c.emit(model.EventTypePaymentMethodSet, map[string]any{"method": booking.MethodOnline})
		}
		c.emit(model.EventTypeOrderCreated, map[string]any{"orderId": order.ID, "amount": total * 100})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &OrderView{
		OrderID:  order.ID,
		Amount:   total * 100,
		Currency: s.gw.Currency(),
		Key:      s.gw.KeyID(),
		Receipt:  receipt,
	}, nil
}

// openOrder — последний заказ шлюза, по которому ещё можно платить.
func (s *PaymentService) openOrder(ctx context.Context, row *model.Booking, amount int64) (*model.GatewayOrder, error) {
	if row.PaymentMethod != booking.MethodOnline {
		return nil, nil
	}
	o, err := s.bookings.store.Payments.LatestForBooking(ctx, row.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open order: %w", err)
	}
	if o.Status != model.GatewayOrderCreated || o.Amount != amount || o.Currency != s.gw.Currency() {
		return nil, nil
	}
	return o, nil
}

// VerifyOnline принимает подписанный колбэк шлюза. Повтор с тем же paymentId
// возвращает заказ без изменений.
func (s *PaymentService) VerifyOnline(ctx context.Context, actor Actor, id uuid.UUID, cb booking.GatewayCallback) (*model.Booking, error) {
	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return nil, invalidArg("missing payment parameters")
	}

	row, err := s.bookings.mutate(ctx, "VerifyOnline", actor, id, func(ctx context.Context, c *change) error {
		if err := c.requireCustomer(actor); err != nil {
			return err
		}

		seen, err := c.tx.Payments.FindByPaymentID(ctx, cb.PaymentID)
		if err != nil {
			return fmt.Errorf("find payment: %w", err)
		}
		if seen != nil {
			if seen.BookingID != c.row.ID || seen.OrderID != cb.OrderID {
				return booking.ErrOrderMismatch
			}
			if c.b.PaymentStatus == booking.PaymentPaid {
				return errUnchanged
			}
		}

		order, err := c.tx.Payments.FindByOrderID(ctx, cb.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return booking.ErrOrderMismatch
			}
			return fmt.Errorf("find order: %w", err)
		}

		settlement, err := booking.VerifyOnline(c.b, booking.OnlineOrder{
			BookingID: order.BookingID,
			OrderID:   order.OrderID,
			Amount:    order.Amount,
		}, cb, s.gw, s.bookings.now())
		if err != nil {
			return err
		}
		if err := c.b.Settle(settlement); err != nil {
			return err
		}
		if err := c.tx.Payments.MarkPaid(ctx, order.ID, cb.PaymentID, cb.Signature); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		c.emit(model.EventTypePaymentPaid, map[string]any{
			"method":    booking.MethodOnline,
			"orderId":   order.OrderID,
			"paymentId": cb.PaymentID,
			"amount":    order.Amount,
		})
		return nil
	})
	if errors.Is(err, booking.ErrSignatureMismatch) {
		s.markOrderFailed(ctx, id, cb.OrderID)
	}
	return row, err
}

func (s *PaymentService) markOrderFailed(ctx context.Context, bookingID uuid.UUID, orderID string) {
	order, err := s.bookings.store.Payments.FindByOrderID(ctx, orderID)
	if err != nil || order.BookingID != bookingID {
		return
	}
	if err := s.bookings.store.Payments.MarkFailed(ctx, order.ID); err != nil {
		log.Printf("mark order %s failed: %v", orderID, err)
	}
}

// ConfirmCOD — исполнитель подтверждает получение наличных. Подтверждение
// попадает в аудит; клиент может его оспорить в течение окна спора.
func (s *PaymentService) ConfirmCOD(ctx context.Context, actor Actor, id uuid.UUID) (*model.Booking, error) {
	return s.bookings.mutate(ctx, "ConfirmCOD", actor, id, func(ctx context.Context, c *change) error {
		w, err := c.requireWorker(ctx, actor, false)
		if err != nil {
			return err
		}
		settlement, err := booking.AttestCash(c.b, booking.Worker{
			ID:        w.ID,
			Available: w.IsAvailable,
			AllowsCOD: w.AllowsCOD,
		}, s.bookings.now())
		if err != nil {
			return err
		}
		if err := c.b.Settle(settlement); err != nil {
			return err
		}
		c.emit(model.EventTypeCODAttested, map[string]any{
			"workerId":   w.ID,
			"amount":     c.b.Total(),
			"reference":  settlement.Reference(),
			"attestedAt": settlement.At(),
		})
		return nil
	})
}
