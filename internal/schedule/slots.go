package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/auth"
)

// SlotAdmin covers manual slot maintenance. It never changes IsAvailable
// after creation; that flag belongs to the booking claim.
type SlotAdmin struct {
	repo   SlotRepository
	logger zerolog.Logger
}

func NewSlotAdmin(repo SlotRepository, logger zerolog.Logger) *SlotAdmin {
	return &SlotAdmin{repo: repo, logger: logger.With().Str("component", "slot_admin").Logger()}
}

func (s *SlotAdmin) Create(ctx context.Context, actor auth.Actor, slot *Slot) error {
	if slot.ProviderID == uuid.Nil && actor.Role == auth.RoleProvider {
		slot.ProviderID = actor.ID
	}
	if slot.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if slot.Date.IsZero() {
		return fmt.Errorf("%w: slot date is required", ErrInvalidInput)
	}
	if !slot.Time.Valid() {
		return fmt.Errorf("%w: slot time out of range", ErrInvalidInput)
	}
	if !actor.CanManageProvider(slot.ProviderID) {
		return auth.ErrForbidden
	}
	// an unavailable slot with no appointment could never be claimed or deleted
	if !slot.IsAvailable {
		return fmt.Errorf("%w: new slots must be available, use Is_Blocked to close one", ErrInvalidInput)
	}

	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info().
		Str("slot_id", slot.ID.String()).
		Str("provider_id", slot.ProviderID.String()).
		Str("date", slot.Date.String()).
		Str("time", slot.Time.String()).
		Str("actor", actor.String()).
		Msg("slot created")
	return nil
}

// Get is readable by anyone authenticated; slots carry no patient data.
func (s *SlotAdmin) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (s *SlotAdmin) List(ctx context.Context, f SlotFilter) ([]Slot, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput, f.To, f.From)
	}
	slots, err := s.repo.ListSlots(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// SetBlocked applies or lifts the administrative block on a slot.
func (s *SlotAdmin) SetBlocked(ctx context.Context, actor auth.Actor, id uuid.UUID, blocked bool) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if !actor.CanManageProvider(slot.ProviderID) {
		return nil, auth.ErrForbidden
	}

	updated, err := s.repo.SetSlotBlocked(ctx, id, blocked)
	if err != nil {
		return nil, fmt.Errorf("block slot: %w", err)
	}

	s.logger.Info().
		Str("slot_id", id.String()).
		Bool("is_blocked", blocked).
		Str("actor", actor.String()).
		Msg("slot block changed")
	return updated, nil
}

func (s *SlotAdmin) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}
	if !actor.CanManageProvider(slot.ProviderID) {
		return auth.ErrForbidden
	}

	if err := s.repo.DeleteSlot(ctx, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	s.logger.Info().
		Str("slot_id", id.String()).
		Str("actor", actor.String()).
		Msg("slot deleted")
	return nil
}
