package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/auth"
)

// Generator materialises slots from active templates. Runs are idempotent:
// repeating a request only creates slots that do not exist yet.
type Generator struct {
	templates TemplateRepository
	slots     SlotRepository
	loc       *time.Location
	maxDays   int
	now       func() time.Time
	logger    zerolog.Logger
}

func NewGenerator(templates TemplateRepository, slots SlotRepository, loc *time.Location, maxDays int, logger zerolog.Logger) *Generator {
	return &Generator{
		templates: templates,
		slots:     slots,
		loc:       loc,
		maxDays:   maxDays,
		now:       time.Now,
		logger:    logger.With().Str("component", "slot_generator").Logger(),
	}
}

// WithClock replaces the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// ValidateRange checks an inclusive date range against the configured bound.
func ValidateRange(from, to Date, maxDays int) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput, to, from)
	}
	if days := from.DaysUntil(to) + 1; days > maxDays {
		return fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLarge, days, maxDays)
	}
	return nil
}

// Generate creates the missing slots for providerID over [from, to].
// Finding no active template is reported through the result's warning.
func (g *Generator) Generate(ctx context.Context, actor auth.Actor, providerID uuid.UUID, from, to Date) (GenerationResult, error) {
	res := GenerationResult{ProviderID: providerID}

	if providerID == uuid.Nil {
		return res, fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if !actor.CanManageProvider(providerID) {
		return res, auth.ErrForbidden
	}
	if err := ValidateRange(from, to, g.maxDays); err != nil {
		return res, err
	}

	templates, err := g.templates.ListActiveTemplates(ctx, providerID)
	if err != nil {
		return res, fmt.Errorf("load active templates: %w", err)
	}

	candidates := Candidates(providerID, templates, from, to)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		res.Warning = WarningNoActiveTemplates
		g.logger.Warn().
			Str("provider_id", providerID.String()).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("no active templates match the requested range")
		return res, nil
	}

	existing, err := g.slots.ExistingSlotKeys(ctx, providerID, from, to)
	if err != nil {
		return res, fmt.Errorf("load existing slots: %w", err)
	}

	now := g.now().In(g.loc)
	var fresh []Slot
	for _, key := range candidates {
		if _, ok := existing[key]; ok {
			res.SkippedExisting++
			continue
		}
		if key.Date.At(key.Time, g.loc).Before(now) {
			res.SkippedPast++
			continue
		}
		fresh = append(fresh, Slot{
			ProviderID:  key.ProviderID,
			Date:        key.Date,
			Time:        key.Time,
			IsAvailable: true,
			IsBlocked:   false,
		})
	}

	if len(fresh) > 0 {
		created, err := g.slots.InsertSlots(ctx, fresh)
		if err != nil {
			return res, fmt.Errorf("insert slots: %w", err)
		}
		res.SlotsGenerated = created
		// a concurrent run may have inserted some of the same keys first
		res.SkippedExisting += len(fresh) - created
	}

	g.logger.Info().
		Str("provider_id", providerID.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Int("created", res.SlotsGenerated).
		Int("skipped_existing", res.SkippedExisting).
		Int("skipped_past", res.SkippedPast).
		Str("actor", actor.String()).
		Msg("slots generated")

	return res, nil
}

// GenerateHorizon keeps every provider with active templates generated for
// the next days days, starting today in the canonical zone.
func (g *Generator) GenerateHorizon(ctx context.Context, days int) ([]GenerationResult, error) {
	providers, err := g.templates.ListProvidersWithActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	from := DateOf(g.now().In(g.loc))
	to := from.AddDays(days - 1)

	results := make([]GenerationResult, 0, len(providers))
	for _, providerID := range providers {
		res, err := g.Generate(ctx, auth.System(), providerID, from, to)
		if err != nil {
			g.logger.Error().Err(err).Str("provider_id", providerID.String()).Msg("horizon generation failed")
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// Candidates expands templates into the slot keys they yield over [from, to],
// in date then time order, without duplicates.
func Candidates(providerID uuid.UUID, templates []Template, from, to Date) []SlotKey {
	byWeekday := make(map[time.Weekday][]Template)
	for _, t := range templates {
		if !t.IsActive || t.ProviderID != providerID {
			continue
		}
		wd := time.Weekday(t.Weekday)
		byWeekday[wd] = append(byWeekday[wd], t)
	}

	var out []SlotKey
	seen := make(map[SlotKey]struct{})
	for d := from; !d.After(to); d = d.AddDays(1) {
		var day []SlotKey
		for _, t := range byWeekday[d.Weekday()] {
			for _, c := range t.Starts() {
				key := SlotKey{ProviderID: providerID, Date: d, Time: c}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				day = append(day, key)
			}
		}
		sort.Slice(day, func(i, j int) bool { return day[i].Time < day[j].Time })
		out = append(out, day...)
	}
	return out
}
