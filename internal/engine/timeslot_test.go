package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlot(t *testing.T, day Weekday, start, end string) TimeSlot {
	t.Helper()
	s, err := ParseTimeOfDay(start)
	require.NoError(t, err)
	e, err := ParseTimeOfDay(end)
	require.NoError(t, err)
	slot, err := NewTimeSlot(day, s, e)
	require.NoError(t, err)
	return slot
}

func TestNewTimeSlotRejectsInvertedRange(t *testing.T) {
	_, err := NewTimeSlot(Monday, 600, 480)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = NewTimeSlot(Monday, 480, 480)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestNewTimeSlotRejectsBadWeekday(t *testing.T) {
	_, err := NewTimeSlot(Weekday(0), 480, 600)
	require.Error(t, err)
	_, err = NewTimeSlot(Weekday(8), 480, 600)
	require.Error(t, err)
}

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(510), v)
	assert.Equal(t, "08:30", v.String())

	_, err = ParseTimeOfDay("25:00")
	require.Error(t, err)
	_, err = ParseTimeOfDay("nope")
	require.Error(t, err)
}

func TestOverlapsDifferentDaysNever(t *testing.T) {
	a := mustSlot(t, Monday, "08:00", "10:00")
	b := mustSlot(t, Tuesday, "08:00", "10:00")
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlapsTouchingEndpointsDoNot(t *testing.T) {
	a := mustSlot(t, Monday, "08:00", "10:00")
	b := mustSlot(t, Monday, "10:00", "12:00")
	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
}

func TestOverlapsHalfOpenIntersection(t *testing.T) {
	a := mustSlot(t, Monday, "08:00", "10:00")
	b := mustSlot(t, Monday, "09:00", "11:00")
	inner := mustSlot(t, Monday, "08:30", "09:30")

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.True(t, a.Overlaps(inner))
	assert.True(t, inner.Overlaps(a))
}

func TestContains(t *testing.T) {
	window := mustSlot(t, Monday, "08:00", "17:00")
	assert.True(t, window.Contains(mustSlot(t, Monday, "08:00", "10:00")))
	assert.True(t, window.Contains(window))
	assert.False(t, window.Contains(mustSlot(t, Monday, "07:30", "09:00")))
	assert.False(t, window.Contains(mustSlot(t, Tuesday, "08:00", "10:00")))
}

func TestTotalHoursMinutePrecision(t *testing.T) {
	slots := []TimeSlot{
		mustSlot(t, Monday, "08:00", "09:30"),
		mustSlot(t, Wednesday, "13:00", "14:00"),
	}
	assert.InDelta(t, 2.5, TotalHours(slots), 1e-9)
	assert.InDelta(t, 0, TotalHours(nil), 1e-9)
}

func TestHasOverlap(t *testing.T) {
	clean := []TimeSlot{
		mustSlot(t, Monday, "08:00", "10:00"),
		mustSlot(t, Monday, "10:00", "12:00"),
		mustSlot(t, Friday, "08:00", "10:00"),
	}
	assert.False(t, HasOverlap(clean))

	dirty := append(clean, mustSlot(t, Monday, "09:00", "09:30"))
	assert.True(t, HasOverlap(dirty))
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday(" monday ")
	require.NoError(t, err)
	assert.Equal(t, Monday, d)
	assert.Equal(t, "MONDAY", d.String())

	_, err = ParseWeekday("someday")
	require.Error(t, err)
}
