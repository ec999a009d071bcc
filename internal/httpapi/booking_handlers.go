package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/listing"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", listing.MaxPageSize)
	offset := intQuery(r, "offset", 0)
	rows, _, err := s.cfg.Catalog.ListServices(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]api.Service, 0, len(rows))
	for i := range rows {
		out = append(out, toService(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	serviceID := uuid.Nil
	if v := r.URL.Query().Get("service"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, &booking.ValidationError{Field: "service", Message: "must be a uuid"})
			return
		}
		serviceID = id
	}
	rows, err := s.cfg.Catalog.ListWorkers(r.Context(), serviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]api.Worker, 0, len(rows))
	for i := range rows {
		out = append(out, toWorker(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r, "workerId", "serviceId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := service.CreateBookingInput{
		Description: fields["description"],
		Urgency:     fields["urgency"],
	}
	if in.WorkerID, err = uuid.Parse(fields["workerId"]); err != nil {
		writeError(w, r, &booking.ValidationError{Field: "workerId", Message: "must be a uuid"})
		return
	}
	if in.ServiceID, err = uuid.Parse(fields["serviceId"]); err != nil {
		writeError(w, r, &booking.ValidationError{Field: "serviceId", Message: "must be a uuid"})
		return
	}
	if raw := fields["contactDates"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.ContactDates); err != nil {
			writeError(w, r, &booking.ValidationError{Field: "contactDates", Message: "must be a JSON array of strings"})
			return
		}
	}

	b, err := s.cfg.Bookings.Create(r.Context(), mustActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBooking(b))
}

// listBookings — история заказов клиента (для исполнителя — его заказы), постранично.
func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.cfg.Bookings.List(r.Context(), mustActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := listing.Paginate(toBookings(rows), intQuery(r, "page", 1), intQuery(r, "pageSize", listing.DefaultPageSize))
	writeJSON(w, http.StatusOK, api.Page[api.Booking]{
		Items:    page.Items,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		HasNext:  page.HasNext,
		HasPrev:  page.HasPrev,
	})
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(s.cfg.Bookings.Get)(w, r)
}

func (s *Server) bookingEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.cfg.Bookings.Events(r.Context(), mustActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]api.AuditEvent, 0, len(events))
	for i := range events {
		out = append(out, toAuditEvent(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type bookingFn func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error)

// bookingAction — обработчик для операций без тела: id из пути, в ответе проекция заказа.
func (s *Server) bookingAction(fn bookingFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		b, err := fn(r.Context(), mustActor(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBooking(b))
	}
}

func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(s.cfg.Bookings.Cancel)(w, r)
}

func (s *Server) disputeBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(s.cfg.Bookings.Dispute)(w, r)
}

func (s *Server) choosePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req api.PaymentMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Method != booking.MethodOnline && req.Method != booking.MethodCOD {
		writeError(w, r, &booking.ValidationError{Field: "method", Message: "must be online or cod"})
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Bookings.ChoosePaymentMethod(ctx, actor, id, req.Method)
	})(w, r)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.cfg.Payments.CreateOrder(r.Context(), mustActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.Order{
		OrderID:  order.OrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Key:      order.Key,
		Receipt:  order.Receipt,
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Payments.VerifyOnline(ctx, actor, id, booking.GatewayCallback{
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Signature: req.Signature,
		})
	})(w, r)
}

func (s *Server) rateBooking(w http.ResponseWriter, r *http.Request) {
	var req api.RatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Bookings.Rate(ctx, actor, id, req.Rating)
	})(w, r)
}

func (s *Server) addTariffItem(w http.ResponseWriter, r *http.Request) {
	var item api.TariffItem
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Bookings.AddItem(ctx, actor, id, booking.TariffItem(item))
	})(w, r)
}

func (s *Server) updateTariffItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var item api.TariffItem
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Bookings.UpdateItem(ctx, actor, id, index, booking.TariffItem(item))
	})(w, r)
}

func (s *Server) removeTariffItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.bookingAction(func(ctx context.Context, actor service.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.cfg.Bookings.RemoveItem(ctx, actor, id, index)
	})(w, r)
}

func indexParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, &booking.ValidationError{Field: "index", Message: "must be an integer"}
	}
	return n, nil
}
