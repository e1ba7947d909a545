package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/metrics"
)

func bookAppointmentHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity.Role != string(booking.RolePatient) {
			writeError(w, http.StatusForbidden, "patients_only", "only patients can book appointments")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		appt, err := svc.Book(r.Context(), identity.ID, providerID, slotID, req.Notes)
		if err != nil {
			if collector != nil {
				outcome := metrics.OutcomeError
				if errors.Is(err, booking.ErrSlotUnavailable) {
					outcome = metrics.OutcomeConflict
				}
				collector.BookingAttemptsTotal.WithLabelValues(outcome).Inc()
			}
			handleServiceError(w, err)
			return
		}

		if collector != nil {
			collector.BookingAttemptsTotal.WithLabelValues(metrics.OutcomeBooked).Inc()
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		next := booking.AppointmentStatus(req.Status)
		switch next {
		case booking.StatusConfirmed, booking.StatusRejected, booking.StatusCancelled:
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be confirmed, rejected, or cancelled")
			return
		}

		identity := GetIdentity(r.Context())
		actor := booking.Actor{ID: identity.ID, Role: booking.Role(identity.Role)}

		appt, err := svc.Transition(r.Context(), actor, id, next)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		if collector != nil {
			collector.TransitionsTotal.WithLabelValues(string(next)).Inc()
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		identity := GetIdentity(r.Context())
		actor := booking.Actor{ID: identity.ID, Role: booking.Role(identity.Role)}

		if err := svc.CancelAndDelete(r.Context(), actor, id); err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "appointment cancelled"})
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		actor := booking.Actor{ID: identity.ID, Role: booking.Role(identity.Role)}

		appts, err := svc.ListAppointmentsFor(r.Context(), actor)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func publishSlotsHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		identity := GetIdentity(r.Context())
		if identity.Role != string(booking.RoleProvider) || identity.ID != providerID {
			writeError(w, http.StatusForbidden, "providers_only", "only the owning provider can manage slots")
			return
		}

		var req PublishSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.Slots) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_slots", "slots must be a non-empty array")
			return
		}

		inputs := make([]booking.SlotInput, 0, len(req.Slots))
		for _, s := range req.Slots {
			inputs = append(inputs, booking.SlotInput{StartTime: s.Start.UTC(), EndTime: s.End.UTC()})
		}

		slots, err := svc.PublishSlots(r.Context(), providerID, inputs)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		if collector != nil {
			collector.SlotsPublishedTotal.Add(float64(len(slots)))
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func listProvidersHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := svc.ListProviders(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			out = append(out, toProviderResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getProviderHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetProviderDetail(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ProviderDetailResponse{
			ProviderResponse: toProviderResponse(detail.Provider),
			Slots:            toSlotResponses(detail.Slots),
			AvailableSlots:   toSlotResponses(detail.AvailableSlots),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listAvailableSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is no longer available, please select another")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "not_permitted", err.Error())
	case errors.Is(err, booking.ErrInvalidSlotRange):
		writeError(w, http.StatusBadRequest, "invalid_slot_range", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
