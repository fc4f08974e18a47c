package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/auth"
)

// TemplateStore manages providers' recurring weekly availability windows.
// Overlapping windows on the same weekday are accepted; generation collapses
// identical instants through the slot key.
type TemplateStore struct {
	repo   TemplateRepository
	logger zerolog.Logger
}

func NewTemplateStore(repo TemplateRepository, logger zerolog.Logger) *TemplateStore {
	return &TemplateStore{repo: repo, logger: logger.With().Str("component", "template_store").Logger()}
}

func (s *TemplateStore) Create(ctx context.Context, actor auth.Actor, t *Template) error {
	if t.ProviderID == uuid.Nil && actor.Role == auth.RoleProvider {
		t.ProviderID = actor.ID
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if !actor.CanManageProvider(t.ProviderID) {
		return auth.ErrForbidden
	}

	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	s.logger.Info().
		Str("template_id", t.ID.String()).
		Str("provider_id", t.ProviderID.String()).
		Str("weekday", t.Weekday.String()).
		Str("actor", actor.String()).
		Msg("template created")
	return nil
}

func (s *TemplateStore) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if !actor.CanManageProvider(t.ProviderID) {
		return nil, auth.ErrForbidden
	}
	return t, nil
}

// List returns a provider's templates. Providers only ever see their own;
// admin and system may list every provider by passing uuid.Nil.
func (s *TemplateStore) List(ctx context.Context, actor auth.Actor, providerID uuid.UUID) ([]Template, error) {
	if actor.Role == auth.RoleProvider && providerID == uuid.Nil {
		providerID = actor.ID
	}
	if providerID == uuid.Nil {
		if !actor.Is(auth.RoleAdmin, auth.RoleSystem) {
			return nil, auth.ErrForbidden
		}
	} else if !actor.CanManageProvider(providerID) {
		return nil, auth.ErrForbidden
	}

	templates, err := s.repo.ListTemplates(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *TemplateStore) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, patch TemplatePatch) (*Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if !actor.CanManageProvider(t.ProviderID) {
		return nil, auth.ErrForbidden
	}

	patch.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	s.logger.Info().
		Str("template_id", t.ID.String()).
		Bool("is_active", t.IsActive).
		Str("actor", actor.String()).
		Msg("template updated")
	return t, nil
}

// Delete removes the template. Slots it already produced are left alone.
func (s *TemplateStore) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}
	if !actor.CanManageProvider(t.ProviderID) {
		return auth.ErrForbidden
	}

	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	s.logger.Info().
		Str("template_id", id.String()).
		Str("actor", actor.String()).
		Msg("template deleted")
	return nil
}
