package booking

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated identity performing an operation. Identity
// verification happens upstream; the booking core trusts what it is handed.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Title     string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is one bookable interval in a provider's catalog. The Booked flag is
// the single source of truth for availability and is only ever flipped
// through the repository's conditional reserve/release operations.
type Slot struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Booked     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SlotInput is a slot as submitted by a provider, before validation.
type SlotInput struct {
	StartTime time.Time
	EndTime   time.Time
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	// SlotID identifies the reserved slot so a later release targets the
	// exact row even when two slots share the same interval.
	SlotID    uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    AppointmentStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State transitions:
//
//	pending   → confirmed | rejected | cancelled
//	confirmed → completed | cancelled
//	rejected, cancelled, completed are terminal
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
		StatusConfirmed: {StatusCompleted, StatusCancelled},
		StatusRejected:  {},
		StatusCancelled: {},
		StatusCompleted: {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// ReleasesSlot reports whether landing on the given status hands the slot
// back to the provider's open catalog.
func ReleasesSlot(next AppointmentStatus) bool {
	return next == StatusRejected || next == StatusCancelled
}

type ProviderDetail struct {
	Provider
	Slots          []Slot
	AvailableSlots []Slot
}
