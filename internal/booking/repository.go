package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotTaken           = errors.New("slot is already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all store interactions needed by the service.
//
// ReserveSlot and ReleaseSlot are the only ways the Booked flag moves.
// Both are conditional updates evaluated inside the store, never a
// read-then-write done by the caller.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)

	// Slot catalog
	CreateSlots(ctx context.Context, providerID uuid.UUID, inputs []SlotInput) ([]Slot, error)
	GetSlotByID(ctx context.Context, providerID, slotID uuid.UUID) (*Slot, error)
	ListSlots(ctx context.Context, providerID uuid.UUID, onlyOpen bool) ([]Slot, error)

	// ReserveSlot atomically flips Booked false→true and returns the slot.
	// Exactly one of any number of concurrent callers succeeds; the rest
	// get ErrSlotTaken. Unknown slot → ErrSlotNotFound.
	ReserveSlot(ctx context.Context, providerID, slotID uuid.UUID) (*Slot, error)

	// ReleaseSlot atomically flips Booked true→false. A slot that is
	// missing or already open → ErrSlotNotFound; callers decide whether
	// that is fatal.
	ReleaseSlot(ctx context.Context, providerID, slotID uuid.UUID) error

	// Appointments
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus applies the transition only if the current
	// status still equals from; otherwise ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error)

	// Worker queries
	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	FindConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
