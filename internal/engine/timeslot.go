package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrInvalidRange is returned when a slot's start does not precede its end.
var ErrInvalidRange = errors.New("time slot start must precede end")

// Weekday numbers Monday through Sunday as 1..7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = map[Weekday]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

var weekdayIndex = map[string]Weekday{
	"MONDAY":    Monday,
	"TUESDAY":   Tuesday,
	"WEDNESDAY": Wednesday,
	"THURSDAY":  Thursday,
	"FRIDAY":    Friday,
	"SATURDAY":  Saturday,
	"SUNDAY":    Sunday,
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("WEEKDAY(%d)", int(d))
}

// ParseWeekday resolves a day name such as "MONDAY" (case-insensitive).
func ParseWeekday(raw string) (Weekday, error) {
	day, ok := weekdayIndex[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", raw)
	}
	return day, nil
}

// TimeOfDay counts minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a wall-clock value in "HH:MM" form.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	var hh, mm int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("malformed time of day %q", raw)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("time of day %q out of bounds", raw)
	}
	return TimeOfDay(hh*60 + mm), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// TimeSlot is a half-open weekly interval on a single day.
type TimeSlot struct {
	Day   Weekday   `json:"day"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewTimeSlot builds a validated slot. Start must strictly precede end.
func NewTimeSlot(day Weekday, start, end TimeOfDay) (TimeSlot, error) {
	if day < Monday || day > Sunday {
		return TimeSlot{}, fmt.Errorf("weekday %d out of range", int(day))
	}
	if start >= end {
		return TimeSlot{}, fmt.Errorf("%w: %s >= %s", ErrInvalidRange, start, end)
	}
	return TimeSlot{Day: day, Start: start, End: end}, nil
}

// Overlaps reports half-open intersection. Slots on different days never
// overlap, and touching endpoints do not count.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Day == o.Day && s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies fully inside s on the same day.
func (s TimeSlot) Contains(o TimeSlot) bool {
	return s.Day == o.Day && s.Start <= o.Start && o.End <= s.End
}

// Hours returns the slot duration in fractional hours at minute precision.
func (s TimeSlot) Hours() float64 {
	return float64(s.End-s.Start) / 60.0
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}

// TotalHours sums slot durations in fractional hours.
func TotalHours(slots []TimeSlot) float64 {
	return lo.SumBy(slots, func(s TimeSlot) float64 { return s.Hours() })
}

// HasOverlap reports whether any two slots in the set intersect.
func HasOverlap(slots []TimeSlot) bool {
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			if slots[i].Overlaps(slots[j]) {
				return true
			}
		}
	}
	return false
}
