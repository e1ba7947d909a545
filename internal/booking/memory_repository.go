package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository guarded by a single mutex.
// The conditional reserve/release semantics match the Postgres
// implementation, which makes it the fixture for the concurrency tests and
// the local contention simulator.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	slots        map[uuid.UUID]*Slot
	slotOrder    map[uuid.UUID][]uuid.UUID // provider → slot IDs, insertion order
	appointments map[uuid.UUID]*Appointment
	apptOrder    []uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		slots:        make(map[uuid.UUID]*Slot),
		slotOrder:    make(map[uuid.UUID][]uuid.UUID),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

// AddPatient registers a patient, assigning an ID when missing.
func (r *MemoryRepository) AddPatient(p Patient) Patient {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.patients[p.ID] = p
	return p
}

// AddProvider registers a provider, assigning an ID when missing.
func (r *MemoryRepository) AddProvider(p Provider) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.providers[p.ID] = p
	return p
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListProviders(_ context.Context) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result, nil
}

func (r *MemoryRepository) CreateSlots(_ context.Context, providerID uuid.UUID, inputs []SlotInput) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	result := make([]Slot, 0, len(inputs))
	for _, in := range inputs {
		slot := &Slot{
			ID:         uuid.New(),
			ProviderID: providerID,
			StartTime:  in.StartTime,
			EndTime:    in.EndTime,
			Booked:     false,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		r.slots[slot.ID] = slot
		r.slotOrder[providerID] = append(r.slotOrder[providerID], slot.ID)
		result = append(result, *slot)
	}
	return result, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, providerID, slotID uuid.UUID) (*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[slotID]
	if !ok || slot.ProviderID != providerID {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (r *MemoryRepository) ListSlots(_ context.Context, providerID uuid.UUID, onlyOpen bool) ([]Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Slot
	for _, id := range r.slotOrder[providerID] {
		slot := r.slots[id]
		if onlyOpen && slot.Booked {
			continue
		}
		result = append(result, *slot)
	}
	return result, nil
}

func (r *MemoryRepository) ReserveSlot(_ context.Context, providerID, slotID uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[slotID]
	if !ok || slot.ProviderID != providerID {
		return nil, ErrSlotNotFound
	}
	if slot.Booked {
		return nil, ErrSlotTaken
	}

	slot.Booked = true
	slot.UpdatedAt = time.Now()
	cp := *slot
	return &cp, nil
}

func (r *MemoryRepository) ReleaseSlot(_ context.Context, providerID, slotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[slotID]
	if !ok || slot.ProviderID != providerID || !slot.Booked {
		return ErrSlotNotFound
	}

	slot.Booked = false
	slot.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *appt
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now()
	cp.CreatedAt, cp.UpdatedAt = now, now

	r.appointments[cp.ID] = &cp
	r.apptOrder = append(r.apptOrder, cp.ID)

	out := cp
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}

	appt.Status = to
	appt.UpdatedAt = time.Now()
	cp := *appt
	return &cp, nil
}

func (r *MemoryRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)

	for i, apptID := range r.apptOrder {
		if apptID == id {
			r.apptOrder = append(r.apptOrder[:i], r.apptOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(func(a *Appointment) bool { return a.PatientID == patientID })
}

func (r *MemoryRepository) ListAppointmentsByProvider(_ context.Context, providerID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(func(a *Appointment) bool { return a.ProviderID == providerID })
}

func (r *MemoryRepository) FindConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	return r.listAppointments(func(a *Appointment) bool {
		return a.Status == StatusConfirmed && !a.StartTime.Before(from) && !a.StartTime.After(to)
	})
}

func (r *MemoryRepository) FindConfirmedEndedBefore(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	return r.listAppointments(func(a *Appointment) bool {
		return a.Status == StatusConfirmed && a.EndTime.Before(cutoff)
	})
}

func (r *MemoryRepository) listAppointments(match func(*Appointment) bool) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, id := range r.apptOrder {
		if appt := r.appointments[id]; match(appt) {
			result = append(result, *appt)
		}
	}
	return result, nil
}
