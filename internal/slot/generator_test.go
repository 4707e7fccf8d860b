package slot

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestGenerator(t *testing.T, repo *memRepository) *Generator {
	t.Helper()
	return NewGenerator(repo, passLocker{}, zaptest.NewLogger(t))
}

func TestGenerateWeeklyEightWeeks(t *testing.T) {
	doctorID := uuid.New()
	repo := newMemRepository(doctorID)
	g := newTestGenerator(t, repo)

	res, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-01-05",
		StartTime:   "09:00",
		EndTime:     "09:30",
		MaxPatients: 3,
		IsRecurring: true,
		Frequency:   FrequencyWeekly,
		EndDate:     "2026-03-01",
	})
	require.NoError(t, err)
	require.Len(t, res.Slots, 8)
	assert.Empty(t, res.Skipped)

	seen := make(map[string]bool)
	for i, s := range res.Slots {
		assert.False(t, seen[s.Date], "duplicate date %s", s.Date)
		seen[s.Date] = true
		assert.Equal(t, doctorID, s.DoctorID)
		assert.Equal(t, "09:00", s.StartTime)
		assert.Equal(t, "09:30", s.EndTime)
		assert.Equal(t, 3, s.MaxPatients)
		assert.Zero(t, s.BookedCount)
		assert.True(t, s.IsRecurring)
		require.NotNil(t, s.Frequency)
		assert.Equal(t, FrequencyWeekly, *s.Frequency)
		require.NotNil(t, s.EndDate)
		assert.Equal(t, "2026-03-01", *s.EndDate)
		if i > 0 {
			assert.Greater(t, s.Date, res.Slots[i-1].Date)
		}
	}
	assert.Equal(t, "2026-01-05", res.Slots[0].Date)
	assert.Equal(t, "2026-02-23", res.Slots[7].Date)

	stored, err := repo.ListSlotsByDoctor(context.Background(), doctorID, "2026-01-01", "2026-12-31")
	require.NoError(t, err)
	assert.Len(t, stored, 8)
}

func TestGenerateSkipsOverlappingCandidates(t *testing.T) {
	doctorID := uuid.New()
	repo := newMemRepository(doctorID)
	repo.put(Slot{DoctorID: doctorID, Date: "2026-01-02", StartTime: "09:15", EndTime: "10:00", MaxPatients: 1})
	// touching the candidate window does not count as overlap
	repo.put(Slot{DoctorID: doctorID, Date: "2026-01-03", StartTime: "10:00", EndTime: "11:00", MaxPatients: 1})
	// another doctor's slot never collides
	repo.put(Slot{DoctorID: uuid.New(), Date: "2026-01-04", StartTime: "09:00", EndTime: "10:00", MaxPatients: 1})

	g := newTestGenerator(t, repo)
	res, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxPatients: 1,
		IsRecurring: true,
		Frequency:   FrequencyDaily,
		EndDate:     "2026-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-02"}, res.Skipped)
	require.Len(t, res.Slots, 4)

	var dates []string
	for _, s := range res.Slots {
		dates = append(dates, s.Date)
	}
	assert.Equal(t, []string{"2026-01-01", "2026-01-03", "2026-01-04", "2026-01-05"}, dates)
}

func TestGenerateSingleSlot(t *testing.T) {
	doctorID := uuid.New()
	repo := newMemRepository(doctorID)
	g := newTestGenerator(t, repo)

	res, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-04-10",
		StartTime:   "9:00",
		EndTime:     "9:45",
		MaxPatients: 1,
	})
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "09:00", res.Slots[0].StartTime)
	assert.Equal(t, "09:45", res.Slots[0].EndTime)
	assert.False(t, res.Slots[0].IsRecurring)
	assert.Nil(t, res.Slots[0].Frequency)
	assert.Nil(t, res.Slots[0].EndDate)

	// the same window again collides with the slot just created
	res, err = g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-04-10",
		StartTime:   "09:30",
		EndTime:     "10:00",
		MaxPatients: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.Equal(t, []string{"2026-04-10"}, res.Skipped)
}

func TestGenerateDefaultHorizonIsOneYear(t *testing.T) {
	doctorID := uuid.New()
	g := newTestGenerator(t, newMemRepository(doctorID))

	res, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-01-01",
		StartTime:   "08:00",
		EndTime:     "08:15",
		MaxPatients: 1,
		IsRecurring: true,
		Frequency:   FrequencyDaily,
	})
	require.NoError(t, err)
	// 2026-01-01 through 2027-01-01 inclusive
	require.Len(t, res.Slots, 366)
	assert.Equal(t, "2027-01-01", res.Slots[365].Date)
}

func TestGenerateMonthlyClampsToMonthEnd(t *testing.T) {
	doctorID := uuid.New()
	g := newTestGenerator(t, newMemRepository(doctorID))

	res, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-01-31",
		StartTime:   "14:00",
		EndTime:     "15:00",
		MaxPatients: 2,
		IsRecurring: true,
		Frequency:   FrequencyMonthly,
		EndDate:     "2026-05-31",
	})
	require.NoError(t, err)

	var dates []string
	for _, s := range res.Slots {
		dates = append(dates, s.Date)
	}
	assert.Equal(t, []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30", "2026-05-31"}, dates)
}

func TestGenerateRejectsInvalidTemplates(t *testing.T) {
	doctorID := uuid.New()
	base := Template{
		DoctorID:    doctorID,
		Date:        "2026-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxPatients: 1,
	}

	cases := []struct {
		name   string
		mutate func(*Template)
	}{
		{"missing doctor", func(tp *Template) { tp.DoctorID = uuid.Nil }},
		{"start after end", func(tp *Template) { tp.StartTime = "11:00" }},
		{"start equals end", func(tp *Template) { tp.EndTime = "09:00" }},
		{"malformed time", func(tp *Template) { tp.StartTime = "9am" }},
		{"malformed date", func(tp *Template) { tp.Date = "01/01/2026" }},
		{"zero capacity", func(tp *Template) { tp.MaxPatients = 0 }},
		{"recurring without frequency", func(tp *Template) { tp.IsRecurring = true }},
		{"unknown frequency", func(tp *Template) { tp.IsRecurring = true; tp.Frequency = "hourly" }},
		{"end date before start", func(tp *Template) {
			tp.IsRecurring = true
			tp.Frequency = FrequencyDaily
			tp.EndDate = "2025-12-31"
		}},
		{"end date equals start", func(tp *Template) {
			tp.IsRecurring = true
			tp.Frequency = FrequencyDaily
			tp.EndDate = "2026-01-01"
		}},
		{"end date beyond horizon", func(tp *Template) {
			tp.IsRecurring = true
			tp.Frequency = FrequencyWeekly
			tp.EndDate = "2028-06-01"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepository(doctorID)
			g := newTestGenerator(t, repo)

			tpl := base
			tc.mutate(&tpl)

			_, err := g.Generate(context.Background(), tpl)
			assert.ErrorIs(t, err, ErrInvalidTemplate)

			stored, _ := repo.ListSlotsByDoctor(context.Background(), doctorID, "2000-01-01", "2100-01-01")
			assert.Empty(t, stored, "rejected templates must not persist anything")
		})
	}
}

func TestGenerateUnknownDoctor(t *testing.T) {
	g := newTestGenerator(t, newMemRepository())
	_, err := g.Generate(context.Background(), Template{
		DoctorID:    uuid.New(),
		Date:        "2026-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxPatients: 1,
	})
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestGenerateWhileScheduleLocked(t *testing.T) {
	doctorID := uuid.New()
	repo := newMemRepository(doctorID)
	g := NewGenerator(repo, passLocker{busy: true}, zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), Template{
		DoctorID:    doctorID,
		Date:        "2026-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxPatients: 1,
	})
	assert.ErrorIs(t, err, ErrScheduleBusy)
}

func TestExpandNeverExceedsOccurrenceCap(t *testing.T) {
	p, err := expand(Template{
		DoctorID:    uuid.New(),
		Date:        "2026-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxPatients: 1,
		IsRecurring: true,
		Frequency:   FrequencyDaily,
		EndDate:     "2028-01-01",
	})
	require.NoError(t, err)
	assert.Len(t, p.dates, 731)
	assert.LessOrEqual(t, len(p.dates), MaxOccurrences)
}
