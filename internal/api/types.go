package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking/internal/booking"
)

type BookAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	SlotID     string `json:"slot_id"`
	Notes      string `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type SlotRangeRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type PublishSlotsRequest struct {
	Slots []SlotRangeRequest `json:"slots"`
}

type SlotResponse struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Booked     bool      `json:"booked"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	SlotID     uuid.UUID `json:"slot_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProviderResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Title     string    `json:"title"`
	Specialty *string   `json:"specialty,omitempty"`
}

type ProviderDetailResponse struct {
	ProviderResponse
	Slots          []SlotResponse `json:"slots"`
	AvailableSlots []SlotResponse `json:"available_slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		Start:      s.StartTime,
		End:        s.EndTime,
		Booked:     s.Booked,
	}
}

func toSlotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		SlotID:     a.SlotID,
		Start:      a.StartTime,
		End:        a.EndTime,
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
	}
}

func toProviderResponse(p booking.Provider) ProviderResponse {
	return ProviderResponse{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Title:     p.Title,
		Specialty: p.Specialty,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
