package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/doctor-slot-booking/internal/redis"
)

const (
	// MaxOccurrences bounds a single recurring expansion.
	MaxOccurrences = 1000
	// MaxHorizon is the furthest an end date may lie after the template date.
	MaxHorizon = 2 // years
	// DefaultHorizon applies when a recurring template carries no end date.
	DefaultHorizon = 1 // years
)

var validate = validator.New()

type Generator struct {
	repo   Repository
	locker redisclient.Locker
	log    *zap.Logger
}

func NewGenerator(repo Repository, locker redisclient.Locker, log *zap.Logger) *Generator {
	return &Generator{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// plan is a validated template expanded into concrete dates.
type plan struct {
	dates []time.Time
	start clock
	end   clock
}

// Generate expands tpl into slots and persists every candidate that does not
// overlap an existing slot of the same doctor on the same date. Overlapping
// candidates are skipped, not treated as errors.
func (g *Generator) Generate(ctx context.Context, tpl Template) (*GenerateResult, error) {
	p, err := expand(tpl)
	if err != nil {
		return nil, err
	}

	exists, err := g.repo.DoctorExists(ctx, tpl.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	var result *GenerateResult

	// The overlap check and the insert must not interleave with another
	// generation for the same doctor.
	err = g.locker.WithDoctorLock(ctx, tpl.DoctorID, func(lockCtx context.Context) error {
		first := p.dates[0].Format(DateLayout)
		last := p.dates[len(p.dates)-1].Format(DateLayout)

		existing, err := g.repo.ListSlotsByDoctor(lockCtx, tpl.DoctorID, first, last)
		if err != nil {
			return fmt.Errorf("list existing slots: %w", err)
		}

		candidates, skipped, err := p.candidates(tpl, existing)
		if err != nil {
			return err
		}

		res := &GenerateResult{Skipped: skipped}
		if len(candidates) > 0 {
			created, err := g.repo.CreateSlots(lockCtx, candidates)
			if err != nil {
				return fmt.Errorf("create slots: %w", err)
			}
			res.Slots = created
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	g.log.Info("slots generated",
		zap.String("doctor_id", tpl.DoctorID.String()),
		zap.Bool("recurring", tpl.IsRecurring),
		zap.Int("created", len(result.Slots)),
		zap.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}

func (p plan) candidates(tpl Template, existing []Slot) ([]Slot, []string, error) {
	byDate := make(map[string][]Slot, len(existing))
	for _, s := range existing {
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	var (
		out     []Slot
		skipped []string
	)
	startStr, endStr := p.start.String(), p.end.String()

	for _, d := range p.dates {
		date := d.Format(DateLayout)

		collides := false
		for _, s := range byDate[date] {
			overlap, err := Overlaps(startStr, endStr, s.StartTime, s.EndTime)
			if err != nil {
				return nil, nil, fmt.Errorf("existing slot %s: %w", s.ID, err)
			}
			if overlap {
				collides = true
				break
			}
		}
		if collides {
			skipped = append(skipped, date)
			continue
		}

		s := Slot{
			ID:          uuid.New(),
			DoctorID:    tpl.DoctorID,
			Date:        date,
			StartTime:   startStr,
			EndTime:     endStr,
			MaxPatients: tpl.MaxPatients,
			IsRecurring: tpl.IsRecurring,
		}
		if tpl.IsRecurring {
			freq := tpl.Frequency
			end := p.dates[len(p.dates)-1].Format(DateLayout)
			if tpl.EndDate != "" {
				end = tpl.EndDate
			}
			s.Frequency = &freq
			s.EndDate = &end
		}
		out = append(out, s)
	}

	return out, skipped, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTemplate, fmt.Sprintf(format, args...))
}

// expand validates tpl and computes every date it covers. Nothing is persisted
// when the expansion is rejected.
func expand(tpl Template) (plan, error) {
	if tpl.DoctorID == uuid.Nil {
		return plan{}, invalid("doctor_id is required")
	}
	if err := validate.Struct(tpl); err != nil {
		return plan{}, invalid("%s", err.Error())
	}

	start, err := parseClock(tpl.StartTime)
	if err != nil {
		return plan{}, invalid("%s", err.Error())
	}
	end, err := parseClock(tpl.EndTime)
	if err != nil {
		return plan{}, invalid("%s", err.Error())
	}
	if start >= end {
		return plan{}, invalid("start time %s must be before end time %s", start, end)
	}

	anchor, err := time.Parse(DateLayout, tpl.Date)
	if err != nil {
		return plan{}, invalid("invalid date %q", tpl.Date)
	}

	if !tpl.IsRecurring {
		return plan{dates: []time.Time{anchor}, start: start, end: end}, nil
	}

	if tpl.Frequency == "" {
		return plan{}, invalid("frequency is required for recurring slots")
	}

	until := anchor.AddDate(DefaultHorizon, 0, 0)
	if tpl.EndDate != "" {
		until, err = time.Parse(DateLayout, tpl.EndDate)
		if err != nil {
			return plan{}, invalid("invalid end date %q", tpl.EndDate)
		}
		if !until.After(anchor) {
			return plan{}, invalid("end date %s must be after start date %s", tpl.EndDate, tpl.Date)
		}
		if until.After(anchor.AddDate(MaxHorizon, 0, 0)) {
			return plan{}, invalid("end date %s is more than %d years after %s", tpl.EndDate, MaxHorizon, tpl.Date)
		}
	}

	var dates []time.Time
	for i := 0; ; i++ {
		d := step(anchor, tpl.Frequency, i)
		if d.After(until) {
			break
		}
		if len(dates) == MaxOccurrences {
			return plan{}, invalid("template expands to more than %d slots", MaxOccurrences)
		}
		dates = append(dates, d)
	}

	return plan{dates: dates, start: start, end: end}, nil
}

// step returns the i-th occurrence after anchor. Monthly occurrences keep the
// anchor's day of month, clamped to the last day of shorter months.
func step(anchor time.Time, freq Frequency, i int) time.Time {
	switch freq {
	case FrequencyDaily:
		return anchor.AddDate(0, 0, i)
	case FrequencyWeekly:
		return anchor.AddDate(0, 0, 7*i)
	default:
		firstOfMonth := time.Date(anchor.Year(), anchor.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
		day := anchor.Day()
		if day > lastDay {
			day = lastDay
		}
		return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, time.UTC)
	}
}
