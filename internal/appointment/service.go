package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventPaymentStatusChanged     = "PAYMENT_STATUS_CHANGED"

	sweepBatchSize = 500
)

// Service owns every write to appointments and the only write that lowers a
// slot's availability.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	loc    *time.Location
	grace  time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewService wires the appointment core. locker may be nil, in which case
// concurrent claims are serialised by the database row lock alone.
func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		locker: locker,
		loc:    loc,
		grace:  cfg.NoShowGrace,
		now:    time.Now,
		logger: logger.With().Str("component", "appointments").Logger(),
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Transition moves an appointment along the lifecycle graph on behalf of
// actor. Moving to Cancelled also re-opens the slot when it is still ahead.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, id uuid.UUID, to Status) (*Appointment, error) {
	var (
		updated  *Appointment
		from     Status
		released bool
	)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !CanView(*appt, actor) {
			return auth.ErrForbidden
		}
		if err := CheckTransition(*appt, to, actor); err != nil {
			return err
		}

		from = appt.Status
		appt.Status = to
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		if to == StatusCancelled {
			released, err = s.releaseSlot(ctx, tx, appt)
			if err != nil {
				return err
			}
		}

		updated = appt
		return s.logEvent(ctx, tx, appt.ID, EventAppointmentStatusChanged, map[string]any{
			"from":          from,
			"to":            to,
			"actor":         actor.String(),
			"slot_released": released,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Bool("slot_released", released).
		Str("actor", actor.String()).
		Msg("appointment status changed")

	return updated, nil
}

// releaseSlot makes the appointment's slot bookable again when it still
// exists and has not started yet. Past slots stay claimed.
func (s *Service) releaseSlot(ctx context.Context, tx Tx, appt *Appointment) (bool, error) {
	if appt.SlotID == nil {
		return false, nil
	}

	slot, err := tx.LockSlot(ctx, *appt.SlotID)
	if errors.Is(err, schedule.ErrSlotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock slot: %w", err)
	}

	if slot.IsAvailable || !slot.StartsAt(s.loc).After(s.now()) {
		return false, nil
	}

	if err := tx.SetSlotAvailable(ctx, slot.ID, true); err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return true, nil
}

// SetPaymentStatus records the tag handed over by the billing collaborator.
func (s *Service) SetPaymentStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, ps PaymentStatus) (*Appointment, error) {
	if !actor.Is(auth.RoleAdmin, auth.RoleSystem) {
		return nil, auth.ErrForbidden
	}
	if _, err := ParsePaymentStatus(string(ps)); err != nil || ps == "" {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, ps)
	}

	var updated *Appointment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		prev := appt.PaymentStatus
		appt.PaymentStatus = ps
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = appt
		return s.logEvent(ctx, tx, appt.ID, EventPaymentStatusChanged, map[string]any{
			"from":  prev,
			"to":    ps,
			"actor": actor.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SweepNoShows marks Scheduled and Confirmed appointments whose start plus the
// configured grace period has passed as NoShow.
func (s *Service) SweepNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace).In(s.loc)

	candidates, err := s.repo.FindNoShowCandidates(ctx, schedule.DateOf(cutoff), schedule.ClockOf(cutoff), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find no-show candidates: %w", err)
	}

	marked := 0
	for _, appt := range candidates {
		_, err := s.Transition(ctx, auth.System(), appt.ID, StatusNoShow)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAppointmentNotFound) {
				// moved on since the candidate query
				continue
			}
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			continue
		}
		marked++
	}

	return marked, nil
}

// GetAppointment returns one appointment if the actor may see it.
func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !CanView(*appt, actor) {
		return nil, auth.ErrForbidden
	}
	return appt, nil
}

// ListAppointments lists appointments scoped to what the actor may see.
// Patients and providers are pinned to their own records.
func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, f Filter) ([]Appointment, error) {
	switch actor.Role {
	case auth.RolePatient:
		if f.PatientID != uuid.Nil && f.PatientID != actor.ID {
			return nil, auth.ErrForbidden
		}
		f.PatientID = actor.ID
	case auth.RoleProvider:
		if f.ProviderID != uuid.Nil && f.ProviderID != actor.ID {
			return nil, auth.ErrForbidden
		}
		f.ProviderID = actor.ID
	case auth.RoleAdmin, auth.RoleSystem:
	default:
		return nil, auth.ErrForbidden
	}

	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) logEvent(ctx context.Context, tx Tx, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := tx.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event log %s: %w", eventType, err)
	}
	return nil
}
