package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/booking/internal/auth"
	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/notify"
)

type apiFixture struct {
	router   http.Handler
	tokens   *auth.TokenManager
	repo     *booking.MemoryRepository
	patient  booking.Patient
	provider booking.Provider
	slot     booking.Slot
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := booking.NewMemoryRepository()
	queue := notify.NewMemoryQueue()
	svc := booking.NewService(repo, queue, zerolog.Nop())
	tokens := auth.NewTokenManager("test-secret", "careslot", time.Hour)

	patient := repo.AddPatient(booking.Patient{Name: "Pat Example", Email: "pat@example.com"})
	provider := repo.AddProvider(booking.Provider{Name: "Dr. Example", Email: "doc@example.com", Title: "General Practice"})

	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slots, err := repo.CreateSlots(context.Background(), provider.ID, []booking.SlotInput{
		{StartTime: start, EndTime: start.Add(30 * time.Minute)},
	})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Service: svc,
		Tokens:  tokens,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	return &apiFixture{
		router:   router,
		tokens:   tokens,
		repo:     repo,
		patient:  patient,
		provider: provider,
		slot:     slots[0],
	}
}

func (f *apiFixture) patientToken(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Issue(auth.Identity{
		ID:    f.patient.ID,
		Name:  f.patient.Name,
		Email: f.patient.Email,
		Role:  string(booking.RolePatient),
	})
	require.NoError(t, err)
	return token
}

func (f *apiFixture) providerToken(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Issue(auth.Identity{
		ID:    f.provider.ID,
		Name:  f.provider.Name,
		Email: f.provider.Email,
		Role:  string(booking.RoleProvider),
	})
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (f *apiFixture) book(t *testing.T) AppointmentResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/appointments", f.patientToken(t), BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[AppointmentResponse](t, rec)
}

func TestBookEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.patientToken(t), BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
		Notes:      "knee pain",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appt := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, f.patient.ID, appt.PatientID)
	assert.Equal(t, f.provider.ID, appt.ProviderID)
	assert.Equal(t, f.slot.ID, appt.SlotID)
	assert.Equal(t, string(booking.StatusPending), appt.Status)
	assert.Equal(t, "knee pain", appt.Notes)
}

func TestBookEndpointConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.book(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.patientToken(t), BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "slot_unavailable", errResp.Error)
}

func TestBookEndpointRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", "", BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/appointments", "bogus-token", BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookEndpointRejectsProviders(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.providerToken(t), BookAppointmentRequest{
		ProviderID: f.provider.ID.String(),
		SlotID:     f.slot.ID.String(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "patients_only", errResp.Error)
}

func TestTransitionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	appt := f.book(t)

	// Patients cannot confirm.
	rec := f.do(t, http.MethodPut, "/appointments/"+appt.ID.String(), f.patientToken(t),
		TransitionRequest{Status: string(booking.StatusConfirmed)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The owning provider can.
	rec = f.do(t, http.MethodPut, "/appointments/"+appt.ID.String(), f.providerToken(t),
		TransitionRequest{Status: string(booking.StatusConfirmed)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, string(booking.StatusConfirmed), updated.Status)

	// Replaying the confirmation conflicts.
	rec = f.do(t, http.MethodPut, "/appointments/"+appt.ID.String(), f.providerToken(t),
		TransitionRequest{Status: string(booking.StatusConfirmed)})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransitionEndpointRejectsUnknownStatus(t *testing.T) {
	f := newAPIFixture(t)
	appt := f.book(t)

	rec := f.do(t, http.MethodPut, "/appointments/"+appt.ID.String(), f.providerToken(t),
		TransitionRequest{Status: "completed"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_status", errResp.Error)
}

func TestCancelEndpointFreesSlot(t *testing.T) {
	f := newAPIFixture(t)
	appt := f.book(t)

	// Providers cannot hard-cancel.
	rec := f.do(t, http.MethodDelete, "/appointments/"+appt.ID.String(), f.providerToken(t), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/appointments/"+appt.ID.String(), f.patientToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The slot is open again on the public listing.
	rec = f.do(t, http.MethodGet, "/providers/"+f.provider.ID.String()+"/slots/available", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	slots := decodeBody[[]SlotResponse](t, rec)
	require.Len(t, slots, 1)
	assert.Equal(t, f.slot.ID, slots[0].ID)
	assert.False(t, slots[0].Booked)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	appt := f.book(t)

	for _, token := range []string{f.patientToken(t), f.providerToken(t)} {
		rec := f.do(t, http.MethodGet, "/appointments", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		appts := decodeBody[[]AppointmentResponse](t, rec)
		require.Len(t, appts, 1)
		assert.Equal(t, appt.ID, appts[0].ID)
	}
}

func TestPublishSlotsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Hour)
	body := PublishSlotsRequest{Slots: []SlotRangeRequest{
		{Start: start, End: start.Add(30 * time.Minute)},
		{Start: start.Add(time.Hour), End: start.Add(90 * time.Minute)},
	}}
	path := "/providers/" + f.provider.ID.String() + "/slots"

	// Patients cannot publish, even against a valid provider.
	rec := f.do(t, http.MethodPut, path, f.patientToken(t), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, path, f.providerToken(t), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	slots := decodeBody[[]SlotResponse](t, rec)
	require.Len(t, slots, 2)
	assert.Equal(t, f.provider.ID, slots[0].ProviderID)
	assert.False(t, slots[0].Booked)
}

func TestPublishSlotsEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)
	path := "/providers/" + f.provider.ID.String() + "/slots"

	rec := f.do(t, http.MethodPut, path, f.providerToken(t), PublishSlotsRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_slots", decodeBody[ErrorResponse](t, rec).Error)

	start := time.Now().Add(48 * time.Hour).UTC()
	rec = f.do(t, http.MethodPut, path, f.providerToken(t), PublishSlotsRequest{
		Slots: []SlotRangeRequest{{Start: start, End: start}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_slot_range", decodeBody[ErrorResponse](t, rec).Error)
}

func TestProviderDirectoryEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/providers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	providers := decodeBody[[]ProviderResponse](t, rec)
	require.Len(t, providers, 1)
	assert.Equal(t, f.provider.ID, providers[0].ID)
	assert.Equal(t, f.provider.Name, providers[0].Name)

	rec = f.do(t, http.MethodGet, "/providers/"+f.provider.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decodeBody[ProviderDetailResponse](t, rec)
	assert.Equal(t, f.provider.ID, detail.ID)
	require.Len(t, detail.Slots, 1)
	require.Len(t, detail.AvailableSlots, 1)
}

func TestProviderNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/providers/00000000-0000-0000-0000-000000000001", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "provider_not_found", decodeBody[ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodGet, "/providers/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
