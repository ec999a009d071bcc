package httpapi

import (
	"net/http"

	"github.com/Leganyst/homeservice-platform/internal/api"
)

func (s *Server) workerHome(w http.ResponseWriter, r *http.Request) {
	home, err := s.cfg.Bookings.WorkerHome(r.Context(), mustActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := api.WorkerHome{
		Worker:   toWorker(home.Worker),
		Requests: toBookings(home.Requests),
		Earnings: home.Earnings,
	}
	if home.ActiveJob != nil {
		job := toBooking(home.ActiveJob)
		out.ActiveJob = &job
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request) {
	var req api.AvailabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wk, err := s.cfg.Bookings.SetAvailability(r.Context(), mustActor(r), req.Available)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorker(wk))
}

func (s *Server) addOffer(w http.ResponseWriter, r *http.Request) {
	var req api.OfferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	offer, err := s.cfg.Catalog.AddOffer(r.Context(), mustActor(r), req.ServiceID, req.Charge)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := api.Offer{ServiceID: offer.ServiceID, Charge: offer.Charge}
	if offer.Service != nil {
		out.Name = offer.Service.Name
	}
	writeJSON(w, http.StatusCreated, out)
}
