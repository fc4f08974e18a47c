package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRangeTooLarge    = errors.New("date range too large")
	ErrTemplateNotFound = errors.New("template not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotExists       = errors.New("slot already exists for this provider, date and time")
	ErrSlotClaimed      = errors.New("slot is claimed by an appointment")
	// ErrPersistence wraps storage failures that cannot be handled locally.
	ErrPersistence = errors.New("persistence failure")
)

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	// ListTemplates returns all templates of a provider, or of every provider for uuid.Nil.
	ListTemplates(ctx context.Context, providerID uuid.UUID) ([]Template, error)
	ListActiveTemplates(ctx context.Context, providerID uuid.UUID) ([]Template, error)
	ListProvidersWithActiveTemplates(ctx context.Context) ([]uuid.UUID, error)
	UpdateTemplate(ctx context.Context, t *Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type SlotRepository interface {
	CreateSlot(ctx context.Context, s *Slot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListSlots returns matching slots ordered by date then time.
	ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error)
	SetSlotBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Slot, error)
	// DeleteSlot removes an unclaimed slot; claimed slots yield ErrSlotClaimed.
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	ExistingSlotKeys(ctx context.Context, providerID uuid.UUID, from, to Date) (map[SlotKey]struct{}, error)
	// InsertSlots persists new slots, silently skipping keys that already
	// exist, and reports how many rows were actually created.
	InsertSlots(ctx context.Context, slots []Slot) (int, error)
}
