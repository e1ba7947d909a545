package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/booking/internal/notify"
)

var (
	ErrSlotUnavailable   = errors.New("slot is no longer available")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrNotPermitted      = errors.New("actor is not permitted to perform this transition")
	ErrInvalidSlotRange  = errors.New("slot start must be before slot end")
)

const (
	subjectBooked    = "Appointment Booked"
	subjectRequested = "New Appointment Request"
	subjectConfirmed = "Appointment Confirmed"
	subjectRejected  = "Appointment Rejected"
	subjectReminder  = "Appointment Reminder"
)

type Service struct {
	repo  Repository
	queue notify.Queue
	log   zerolog.Logger
}

func NewService(repo Repository, queue notify.Queue, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		queue: queue,
		log:   log,
	}
}

// Book reserves a slot for a patient and records the resulting appointment.
//
// The reservation itself is a single conditional update inside the
// repository, so concurrent requests for the same slot resolve to exactly
// one winner. The appointment exists if and only if the reservation stuck:
// a failure after the reserve rolls the slot back before returning.
func (s *Service) Book(ctx context.Context, patientID, providerID, slotID uuid.UUID, notes string) (*Appointment, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	provider, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	slot, err := s.repo.ReserveSlot(ctx, providerID, slotID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return nil, ErrSlotUnavailable
		case errors.Is(err, ErrSlotNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("reserve slot: %w", err)
		}
	}

	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		SlotID:     slot.ID,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     StatusPending,
		Notes:      notes,
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		// Compensate: a booked slot without an appointment record is the
		// one inconsistency this service must never leave behind.
		if relErr := s.repo.ReleaseSlot(ctx, providerID, slot.ID); relErr != nil {
			s.log.Error().Err(relErr).
				Str("slot_id", slot.ID.String()).
				Msg("rollback release failed after appointment create error")
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.enqueue(ctx, patient.Email, subjectBooked,
		fmt.Sprintf("Your appointment with %s is pending confirmation.", provider.Name))
	s.enqueue(ctx, provider.Email, subjectRequested,
		fmt.Sprintf("%s has booked an appointment. Please confirm or reject.", patient.Name))

	return created, nil
}

// Transition moves an appointment to a new status on behalf of an actor.
//
// Providers confirm or reject their own pending appointments; patients
// cancel their own pending or confirmed ones. The status update is a
// compare-and-set on the previously observed status, so two racing
// transitions cannot both land — and the slot release that follows a
// rejection or cancellation therefore runs at most once per appointment.
func (s *Service) Transition(ctx context.Context, actor Actor, apptID uuid.UUID, next AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := authorizeTransition(actor, appt, next); err != nil {
		return nil, err
	}

	if !appt.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, next)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the race: someone else moved the status first.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if ReleasesSlot(next) {
		s.releaseSlot(ctx, updated)
	}

	switch next {
	case StatusConfirmed:
		s.notifyPatient(ctx, updated, subjectConfirmed, "Your appointment has been confirmed!")
	case StatusRejected:
		s.notifyPatient(ctx, updated, subjectRejected, "Unfortunately, your appointment request was rejected.")
	}

	return updated, nil
}

// CancelAndDelete is the patient-initiated hard cancellation: the slot goes
// back to the provider's open catalog and the appointment record is removed.
func (s *Service) CancelAndDelete(ctx context.Context, actor Actor, apptID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if actor.Role != RolePatient || actor.ID != appt.PatientID {
		return ErrNotPermitted
	}

	s.releaseSlot(ctx, appt)

	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// PublishSlots appends new open slots to a provider's catalog. Each slot
// must have start < end; overlap with existing slots is not checked and
// remains the provider's responsibility.
func (s *Service) PublishSlots(ctx context.Context, providerID uuid.UUID, inputs []SlotInput) ([]Slot, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	for i, in := range inputs {
		if !in.StartTime.Before(in.EndTime) {
			return nil, fmt.Errorf("slot %d: %w", i, ErrInvalidSlotRange)
		}
	}

	slots, err := s.repo.CreateSlots(ctx, providerID, inputs)
	if err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}
	return slots, nil
}

// ListAvailableSlots returns the provider's unbooked slots.
func (s *Service) ListAvailableSlots(ctx context.Context, providerID uuid.UUID) ([]Slot, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	slots, err := s.repo.ListSlots(ctx, providerID, true)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	return slots, nil
}

// ListProviders returns the provider directory.
func (s *Service) ListProviders(ctx context.Context) ([]Provider, error) {
	providers, err := s.repo.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// GetProviderDetail returns one provider with the full slot catalog plus
// the currently available subset.
func (s *Service) GetProviderDetail(ctx context.Context, providerID uuid.UUID) (*ProviderDetail, error) {
	provider, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	slots, err := s.repo.ListSlots(ctx, providerID, false)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	detail := &ProviderDetail{Provider: *provider, Slots: slots}
	for _, slot := range slots {
		if !slot.Booked {
			detail.AvailableSlots = append(detail.AvailableSlots, slot)
		}
	}
	return detail, nil
}

// ListAppointmentsFor returns the appointments visible to an actor:
// patients see their own bookings, providers the ones addressed to them.
func (s *Service) ListAppointmentsFor(ctx context.Context, actor Actor) ([]Appointment, error) {
	switch actor.Role {
	case RoleProvider:
		return s.repo.ListAppointmentsByProvider(ctx, actor.ID)
	default:
		return s.repo.ListAppointmentsByPatient(ctx, actor.ID)
	}
}

// SendReminders enqueues a reminder to both parties of every confirmed
// appointment starting within the window. Intended to be called
// periodically by the reminder worker.
func (s *Service) SendReminders(ctx context.Context, window time.Duration) error {
	now := time.Now()

	upcoming, err := s.repo.FindConfirmedStartingBetween(ctx, now, now.Add(window))
	if err != nil {
		return fmt.Errorf("find upcoming appointments: %w", err)
	}

	for _, appt := range upcoming {
		patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("skip reminder, patient lookup failed")
			continue
		}
		provider, err := s.repo.GetProviderByID(ctx, appt.ProviderID)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("skip reminder, provider lookup failed")
			continue
		}

		minutes := int(time.Until(appt.StartTime).Round(time.Minute) / time.Minute)

		s.enqueue(ctx, patient.Email, subjectReminder,
			fmt.Sprintf("Your appointment with %s is in %d minutes.", provider.Name, minutes))
		s.enqueue(ctx, provider.Email, subjectReminder,
			fmt.Sprintf("Upcoming appointment with %s in %d minutes.", patient.Name, minutes))
	}

	return nil
}

// CompleteElapsed sweeps confirmed appointments whose end time has passed
// into the completed state. Replays are harmless: the guarded update only
// applies to rows still confirmed.
func (s *Service) CompleteElapsed(ctx context.Context) error {
	ended, err := s.repo.FindConfirmedEndedBefore(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("find ended appointments: %w", err)
	}

	for _, appt := range ended {
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("complete appointment failed")
		}
	}

	return nil
}

func authorizeTransition(actor Actor, appt *Appointment, next AppointmentStatus) error {
	switch next {
	case StatusConfirmed, StatusRejected:
		if actor.Role != RoleProvider || actor.ID != appt.ProviderID {
			return ErrNotPermitted
		}
	case StatusCancelled:
		if actor.Role != RolePatient || actor.ID != appt.PatientID {
			return ErrNotPermitted
		}
	default:
		// completed is applied by the worker, pending only at creation.
		return ErrInvalidTransition
	}
	return nil
}

// releaseSlot hands the appointment's slot back to the open catalog. A
// missing slot (deleted catalog, already released) is logged and swallowed
// so the caller's status change still completes.
func (s *Service) releaseSlot(ctx context.Context, appt *Appointment) {
	err := s.repo.ReleaseSlot(ctx, appt.ProviderID, appt.SlotID)
	if err == nil {
		return
	}
	if errors.Is(err, ErrSlotNotFound) {
		s.log.Warn().
			Str("appointment_id", appt.ID.String()).
			Str("slot_id", appt.SlotID.String()).
			Msg("slot missing during release")
		return
	}
	s.log.Error().Err(err).
		Str("appointment_id", appt.ID.String()).
		Str("slot_id", appt.SlotID.String()).
		Msg("slot release failed")
}

func (s *Service) notifyPatient(ctx context.Context, appt *Appointment, subject, body string) {
	patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("patient lookup failed for notification")
		return
	}
	s.enqueue(ctx, patient.Email, subject, body)
}

func (s *Service) enqueue(ctx context.Context, recipient, subject, body string) {
	msg := notify.Message{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		// Notification delivery is best effort and must not fail the
		// operation that produced it.
		s.log.Warn().Err(err).Str("subject", subject).Msg("notification enqueue failed")
	}
}
