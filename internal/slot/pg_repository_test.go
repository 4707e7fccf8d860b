package slot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/doctor-slot-booking/internal/db/dbtest"
)

func TestPgRepositoryConcurrentReserve(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewPgRepository(pool)
	ctx := context.Background()

	doctorID := dbtest.Doctor(t, pool)
	g := NewGenerator(repo, passLocker{}, zaptest.NewLogger(t))
	res, err := g.Generate(ctx, Template{
		DoctorID:    doctorID,
		Date:        "2030-03-04",
		StartTime:   "10:00",
		EndTime:     "10:30",
		MaxPatients: 3,
	})
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	slotID := res.Slots[0].ID

	m := NewManager(repo, zaptest.NewLogger(t))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		full     int
		unwanted []error
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.TryReserve(ctx, slotID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrSlotFull):
				full++
			default:
				unwanted = append(unwanted, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unwanted)
	assert.Equal(t, 3, success)
	assert.Equal(t, 17, full)

	s, err := m.Get(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.BookedCount)
	assert.True(t, s.IsBooked())

	for i := 0; i < 5; i++ {
		_, err := m.Release(ctx, slotID)
		require.NoError(t, err)
	}
	s, err = m.Get(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BookedCount)
}

func TestPgRepositoryBlockAndDelete(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewPgRepository(pool)
	ctx := context.Background()

	doctorID := dbtest.Doctor(t, pool)
	freq := FrequencyWeekly
	end := "2030-05-27"
	created, err := repo.CreateSlots(ctx, []Slot{{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Date:        "2030-05-06",
		StartTime:   "08:00",
		EndTime:     "08:20",
		MaxPatients: 1,
		IsRecurring: true,
		Frequency:   &freq,
		EndDate:     &end,
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	s := created[0]
	require.NotNil(t, s.Frequency)
	assert.Equal(t, FrequencyWeekly, *s.Frequency)

	m := NewManager(repo, zaptest.NewLogger(t))

	_, err = m.SetBlocked(ctx, s.ID, doctorID, true)
	require.NoError(t, err)
	_, err = m.TryReserve(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSlotBlocked)

	_, err = m.SetBlocked(ctx, s.ID, doctorID, false)
	require.NoError(t, err)
	_, err = m.TryReserve(ctx, s.ID)
	require.NoError(t, err)
	_, err = m.TryReserve(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSlotFull)

	assert.ErrorIs(t, m.Delete(ctx, s.ID, doctorID), ErrSlotHasBookings)
	_, err = m.Release(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, s.ID, doctorID))

	_, err = m.TryReserve(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}
