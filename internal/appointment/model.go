package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusConfirmed  Status = "Confirmed"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusNoShow     Status = "NoShow"
)

var statuses = []Status{
	StatusScheduled, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Live reports whether the appointment still holds its slot.
func (s Status) Live() bool {
	return s == StatusScheduled || s == StatusConfirmed || s == StatusInProgress
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Type string

const (
	TypeInPerson     Type = "InPerson"
	TypeTeleMedicine Type = "TeleMedicine"
	TypeFollowUp     Type = "FollowUp"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeInPerson, TypeTeleMedicine, TypeFollowUp:
		return t, nil
	case "":
		return TypeInPerson, nil
	}
	return "", fmt.Errorf("%w: unknown appointment type %q", ErrInvalidInput, s)
}

// PaymentStatus is the tag recorded on behalf of the billing collaborator.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentWaived   PaymentStatus = "waived"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch p := PaymentStatus(s); p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentWaived:
		return p, nil
	case "":
		return PaymentPending, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, s)
}

type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	SlotID        *uuid.UUID // nil once the slot row has been deleted
	Date          schedule.Date
	Time          schedule.Clock
	Type          Type
	Status        Status
	Reason        string
	Notes         string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.Time, loc)
}

// BookingFields are the caller supplied parts of a new appointment.
type BookingFields struct {
	Type          Type
	Reason        string
	Notes         string
	PaymentStatus PaymentStatus
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Filter narrows appointment listings. Zero values leave a dimension open.
type Filter struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Status     Status
	Limit      int
	Offset     int
}

func (f Filter) Match(a Appointment) bool {
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.ProviderID != uuid.Nil && a.ProviderID != f.ProviderID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
