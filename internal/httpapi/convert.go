package httpapi

import (
	"encoding/json"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

func toBooking(b *model.Booking) api.Booking {
	out := api.Booking{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		WorkerID:      b.WorkerID,
		ServiceID:     b.ServiceID,
		ServiceType:   b.ServiceType,
		Description:   b.Description,
		Urgency:       b.Urgency,
		Status:        b.Status,
		PaymentMethod: b.PaymentMethod,
		PaymentStatus: b.PaymentStatus,
		TariffItems:   make([]api.TariffItem, 0, len(b.TariffItems)),
		BasePrice:     b.BasePrice,
		Total:         b.Total(),
		ReceiptSent:   b.ReceiptSent,
		RequestedAt:   b.RequestedAt,
		AcceptedAt:    b.AcceptedAt,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CancelledAt:   b.CancelledAt,
		PaidAt:        b.PaidAt,
		Disputed:      b.Disputed,
		Version:       b.Version,
	}
	if len(b.ContactDates) > 0 {
		_ = json.Unmarshal(b.ContactDates, &out.ContactDates)
	}
	if b.Rating > 0 {
		r := b.Rating
		out.Rating = &r
	}
	for _, it := range b.TariffItems {
		out.TariffItems = append(out.TariffItems, api.TariffItem{
			Label:       it.Label,
			Amount:      it.Amount,
			Explanation: it.Explanation,
		})
	}
	return out
}

func toBookings(rows []model.Booking) []api.Booking {
	out := make([]api.Booking, 0, len(rows))
	for i := range rows {
		out = append(out, toBooking(&rows[i]))
	}
	return out
}

func toWorker(w *model.Worker) api.Worker {
	out := api.Worker{
		ID:              w.ID,
		DisplayName:     w.DisplayName,
		ExperienceYears: w.ExperienceYears,
		Available:       w.IsAvailable,
		AllowsCOD:       w.AllowsCOD,
		AverageRating:   w.AverageRating,
		TotalReviews:    w.TotalReviews,
	}
	for _, ws := range w.Services {
		offer := api.Offer{ServiceID: ws.ServiceID, Charge: ws.Charge}
		if ws.Service != nil {
			offer.Name = ws.Service.Name
		}
		out.Services = append(out.Services, offer)
	}
	return out
}

func toService(s *model.Service) api.Service {
	return api.Service{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		BaseCost:    s.BaseCost,
	}
}

func toProfile(p *service.Profile) api.Profile {
	out := api.Profile{
		UserID:          p.User.ID,
		Email:           p.User.Email,
		Name:            p.User.Name,
		Phone:           p.User.Phone,
		Address:         p.User.Address,
		Latitude:        p.User.Latitude,
		Longitude:       p.User.Longitude,
		Role:            p.Role,
		ProfileComplete: p.ProfileComplete,
	}
	if p.Worker != nil {
		w := toWorker(p.Worker)
		out.Worker = &w
	}
	return out
}

func toSession(s *service.Session) api.SessionResponse {
	return api.SessionResponse{
		Token:           s.Token,
		UserID:          s.User.ID,
		Role:            s.Role,
		ProfileComplete: s.User.ProfileComplete(),
	}
}

func toAuditEvent(e *model.Event) api.AuditEvent {
	out := api.AuditEvent{ID: e.ID, Type: string(e.EventType), CreatedAt: e.CreatedAt}
	if len(e.Payload) > 0 {
		var payload any
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			out.Payload = payload
		}
	}
	return out
}
