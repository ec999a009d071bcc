package booking

import (
	"strings"
	"time"
)

const maxLabelLen = 100

// TariffLocked — после отправки чека или оплаты позиции менять нельзя. Блокировка необратима.
func (b *Booking) TariffLocked() bool {
	return b.ReceiptSent || b.PaymentStatus == PaymentPaid
}

func (b *Booking) Total() int64 {
	total := b.BasePrice
	for _, it := range b.TariffItems {
		total += it.Amount
	}
	return total
}

func (b *Booking) AddItem(item TariffItem) error {
	if err := b.checkTariffEditable(EventAddItem); err != nil {
		return err
	}
	item, err := normalizeItem(item)
	if err != nil {
		return err
	}

	b.TariffItems = append(append([]TariffItem(nil), b.TariffItems...), item)
	return nil
}

func (b *Booking) UpdateItem(index int, item TariffItem) error {
	if err := b.checkTariffEditable(EventUpdateItem); err != nil {
		return err
	}
	if index < 0 || index >= len(b.TariffItems) {
		return &ValidationError{Field: "index", Message: "no tariff item at this position"}
	}
	item, err := normalizeItem(item)
	if err != nil {
		return err
	}

	items := append([]TariffItem(nil), b.TariffItems...)
	items[index] = item
	b.TariffItems = items
	return nil
}

func (b *Booking) RemoveItem(index int) error {
	if err := b.checkTariffEditable(EventRemoveItem); err != nil {
		return err
	}
	if index < 0 || index >= len(b.TariffItems) {
		return &ValidationError{Field: "index", Message: "no tariff item at this position"}
	}

	items := make([]TariffItem, 0, len(b.TariffItems)-1)
	items = append(items, b.TariffItems[:index]...)
	items = append(items, b.TariffItems[index+1:]...)
	b.TariffItems = items
	return nil
}

// SendReceipt фиксирует тариф и предъявляет его клиенту. Повторно не отправляется.
func (b *Booking) SendReceipt(now time.Time) error {
	if !b.Status.IsActive() {
		return invalid(b, EventSendReceipt, "job is not active")
	}
	if b.ReceiptSent {
		return invalid(b, EventSendReceipt, "receipt already sent")
	}
	if b.PaymentStatus == PaymentPaid {
		return invalid(b, EventSendReceipt, "booking is already paid")
	}
	if len(b.TariffItems) == 0 {
		return invalid(b, EventSendReceipt, "tariff is empty")
	}

	b.ReceiptSent = true
	return nil
}

func (b *Booking) checkTariffEditable(ev Event) error {
	if !b.Status.IsActive() {
		return invalid(b, ev, "job is not active")
	}
	if b.TariffLocked() {
		return invalid(b, ev, "tariff is locked")
	}
	return nil
}

func normalizeItem(item TariffItem) (TariffItem, error) {
	item.Label = strings.TrimSpace(item.Label)
	item.Explanation = strings.TrimSpace(item.Explanation)
	if item.Label == "" {
		return item, &ValidationError{Field: "label", Message: "is required"}
	}
	if len(item.Label) > maxLabelLen {
		return item, &ValidationError{Field: "label", Message: "is too long"}
	}
	if item.Amount < 0 {
		return item, &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return item, nil
}
