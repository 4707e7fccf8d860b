package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Slot is one bookable window of a doctor's day. Date and times are wall-clock
// strings so a slot never drifts across days with the server's timezone.
type Slot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        string
	StartTime   string
	EndTime     string
	MaxPatients int
	BookedCount int
	IsBlocked   bool
	IsRecurring bool
	Frequency   *Frequency
	EndDate     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsBooked is derived on read and never persisted.
func (s Slot) IsBooked() bool {
	return s.BookedCount >= s.MaxPatients
}

func (s Slot) Available() bool {
	return !s.IsBlocked && s.BookedCount < s.MaxPatients
}

// Availability is the read model returned by CheckAvailability.
type Availability struct {
	SlotID      uuid.UUID
	Available   bool
	IsBlocked   bool
	MaxPatients int
	BookedCount int
}

// Template describes a single slot or a recurring series of slots.
type Template struct {
	DoctorID    uuid.UUID
	Date        string    `validate:"required,datetime=2006-01-02"`
	StartTime   string    `validate:"required,datetime=15:04"`
	EndTime     string    `validate:"required,datetime=15:04"`
	MaxPatients int       `validate:"min=1"`
	IsRecurring bool
	Frequency   Frequency `validate:"omitempty,oneof=daily weekly monthly"`
	EndDate     string    `validate:"omitempty,datetime=2006-01-02"`
}

// GenerateResult lists what a Generate call persisted and which dates were
// skipped because they collided with existing slots.
type GenerateResult struct {
	Slots   []Slot
	Skipped []string
}

// clock is minutes since midnight.
type clock int

func parseClock(s string) (clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:mm", s)
	}
	return clock(t.Hour()*60 + t.Minute()), nil
}

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Overlaps uses closed-open semantics: [aStart, aEnd) and [bStart, bEnd)
// touching at an edge do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd string) (bool, error) {
	as, err := parseClock(aStart)
	if err != nil {
		return false, err
	}
	ae, err := parseClock(aEnd)
	if err != nil {
		return false, err
	}
	bs, err := parseClock(bStart)
	if err != nil {
		return false, err
	}
	be, err := parseClock(bEnd)
	if err != nil {
		return false, err
	}
	return as < be && ae > bs, nil
}
