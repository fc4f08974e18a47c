package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Book claims a slot for a patient and creates its appointment in a single
// transaction: the slot row is re-read under lock, flipped to unavailable and
// the appointment inserted, or nothing changes at all. Of any number of
// concurrent calls for one slot exactly one succeeds; the rest get
// ErrSlotUnavailable. Bookings are never retried here because a retry could
// land on a slot the patient did not choose.
func (s *Service) Book(ctx context.Context, actor auth.Actor, slotID, patientID uuid.UUID, fields BookingFields) (*Appointment, error) {
	switch actor.Role {
	case auth.RolePatient:
		if patientID != uuid.Nil && patientID != actor.ID {
			return nil, auth.ErrForbidden
		}
		patientID = actor.ID
	case auth.RoleAdmin:
		if patientID == uuid.Nil {
			return nil, fmt.Errorf("%w: patient_id is required when booking on behalf of a patient", ErrInvalidInput)
		}
	default:
		return nil, auth.ErrForbidden
	}

	if slotID == uuid.Nil {
		return nil, fmt.Errorf("%w: slot_id is required", ErrInvalidInput)
	}
	var err error
	if fields.Type, err = ParseType(string(fields.Type)); err != nil {
		return nil, err
	}
	if fields.PaymentStatus, err = ParsePaymentStatus(string(fields.PaymentStatus)); err != nil {
		return nil, err
	}

	var created *Appointment
	claim := func(ctx context.Context) error {
		appt, err := s.claim(ctx, slotID, patientID, fields, actor)
		if err != nil {
			return err
		}
		created = appt
		return nil
	}

	if s.locker == nil {
		err = claim(ctx)
	} else {
		err = s.locker.WithSlotLock(ctx, slotID, claim)
		if errors.Is(err, redisclient.ErrLockUnavailable) {
			s.logger.Warn().Err(err).Str("slot_id", slotID.String()).Msg("slot lock unavailable, relying on row lock")
			err = claim(ctx)
		}
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: another booking for this slot is in progress", ErrSlotUnavailable)
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", slotID.String()).
		Str("patient_id", patientID.String()).
		Str("provider_id", created.ProviderID.String()).
		Str("actor", actor.String()).
		Msg("slot booked")

	return created, nil
}

func (s *Service) claim(ctx context.Context, slotID, patientID uuid.UUID, fields BookingFields, actor auth.Actor) (*Appointment, error) {
	var created *Appointment

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		slot, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if !slot.IsAvailable {
			return fmt.Errorf("%w: slot is already claimed", ErrSlotUnavailable)
		}
		if slot.IsBlocked {
			return fmt.Errorf("%w: slot is blocked", ErrSlotUnavailable)
		}
		if !slot.StartsAt(s.loc).After(s.now()) {
			return fmt.Errorf("%w: slot has already started", ErrSlotUnavailable)
		}

		if err := tx.SetSlotAvailable(ctx, slot.ID, false); err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}

		id := slot.ID
		appt := &Appointment{
			ID:            uuid.New(),
			PatientID:     patientID,
			ProviderID:    slot.ProviderID,
			SlotID:        &id,
			Date:          slot.Date,
			Time:          slot.Time,
			Type:          fields.Type,
			Status:        StatusScheduled,
			Reason:        fields.Reason,
			Notes:         fields.Notes,
			PaymentStatus: fields.PaymentStatus,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return s.logEvent(ctx, tx, appt.ID, EventAppointmentBooked, map[string]any{
			"slot_id":    slot.ID.String(),
			"patient_id": patientID.String(),
			"date":       slot.Date.String(),
			"time":       slot.Time.String(),
			"actor":      actor.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Release cancels an appointment and hands its slot back to the pool when
// the slot is still in the future.
func (s *Service) Release(ctx context.Context, actor auth.Actor, appointmentID uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, actor, appointmentID, StatusCancelled)
}
