package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidInput        = errors.New("invalid input")
)

// Tx is the unit of work shared by the booking claim and status transitions.
// Every read through it locks the row until the transaction ends.
type Tx interface {
	LockSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error)
	SetSlotAvailable(ctx context.Context, id uuid.UUID, available bool) error

	InsertAppointment(ctx context.Context, a *Appointment) error
	LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointment persists status, notes and payment status.
	UpdateAppointment(ctx context.Context, a *Appointment) error

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithTx runs fn in one transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// FindNoShowCandidates returns Scheduled or Confirmed appointments that
	// start at or before the cutoff, at most limit of them (0 for no limit).
	FindNoShowCandidates(ctx context.Context, cutoffDate schedule.Date, cutoffTime schedule.Clock, limit int) ([]Appointment, error)
}
