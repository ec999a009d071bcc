package booking

import "time"

// Accept — исполнитель берёт заказ. Исполнитель должен быть доступен и не иметь активной работы.
func (b *Booking) Accept(w Worker, now time.Time) error {
	if b.Status != StatusRequested {
		return invalid(b, EventAccept, "booking is not awaiting acceptance")
	}
	if w.ID != b.WorkerID {
		return ErrWrongWorker
	}
	if !w.Available {
		return invalid(b, EventAccept, "worker is unavailable")
	}
	if w.HasActiveJob {
		return invalid(b, EventAccept, "worker already has an active job")
	}

	b.Status = StatusAccepted
	b.AcceptedAt = &now
	return nil
}

// Start — исполнитель приступил к работе на месте. После этого клиент отменить заказ не может.
func (b *Booking) Start(now time.Time) error {
	if b.Status != StatusAccepted {
		return invalid(b, EventStart, "job is not accepted")
	}
	b.Status = StatusInProgress
	b.StartedAt = &now
	return nil
}

// CancelAllowed — чистая функция от now - RequestedAt; считать каждый раз заново, не кэшировать.
func CancelAllowed(b *Booking, now time.Time, window time.Duration) bool {
	if b.Status != StatusRequested && b.Status != StatusAccepted {
		return false
	}
	return now.Sub(b.RequestedAt) < window
}

func (b *Booking) Cancel(now time.Time, window time.Duration) error {
	if b.Status != StatusRequested && b.Status != StatusAccepted {
		return invalid(b, EventCancel, "booking can no longer be cancelled")
	}
	if now.Sub(b.RequestedAt) >= window {
		return invalid(b, EventCancel, "cancellation period expired")
	}

	b.Status = StatusCancelled
	b.CancelledAt = &now
	return nil
}

// Complete — только после оплаты, каким бы путём она ни прошла.
func (b *Booking) Complete(now time.Time) error {
	if !b.Status.IsActive() {
		return invalid(b, EventComplete, "job is not active")
	}
	if b.PaymentStatus != PaymentPaid {
		return invalid(b, EventComplete, "payment has not been received")
	}

	b.Status = StatusCompleted
	b.CompletedAt = &now
	return nil
}

// Rate — одна оценка на заказ, 1..5, после оплаты или завершения.
func (b *Booking) Rate(rating int) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	if b.Status == StatusCancelled {
		return invalid(b, EventRate, "booking was cancelled")
	}
	if b.Rating != 0 {
		return invalid(b, EventRate, "booking is already rated")
	}
	if b.PaymentStatus != PaymentPaid && b.Status != StatusCompleted {
		return invalid(b, EventRate, "rating is allowed only after payment")
	}

	b.Rating = rating
	return nil
}
