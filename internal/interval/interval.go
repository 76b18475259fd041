// Package interval holds the half-open time ranges used for schedules and slots
// and the collision checks performed on them.
package interval

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	timeLayout = "15:04"
	dateLayout = "2006-01-02"
)

var (
	ErrInvalidTime = errors.New("time of day must be HH:MM")
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	ErrEmptyRange  = errors.New("end must be after start")
	ErrInvalidStep = errors.New("step must be a positive whole number of minutes")
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Clock builds a TimeOfDay from hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// On anchors the time of day to a calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	d := DateOf(date)
	return d.Add(time.Duration(t) * time.Minute)
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func New(start, end TimeOfDay) (Interval, error) {
	if !start.Valid() || !end.Valid() {
		return Interval{}, ErrInvalidTime
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrEmptyRange, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

// Overlaps reports whether i and o share any instant. Intervals that only
// touch at an endpoint do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) String() string {
	return "[" + i.Start.String() + ", " + i.End.String() + ")"
}

// Overlaps is the symmetric predicate s1 < e2 && s2 < e1.
func Overlaps(a, b Interval) bool {
	return a.Overlaps(b)
}

// Split cuts i into consecutive step-sized pieces. A trailing piece shorter
// than step is dropped.
func (i Interval) Split(step time.Duration) ([]Interval, error) {
	if step <= 0 || step%time.Minute != 0 {
		return nil, ErrInvalidStep
	}

	var pieces []Interval
	for cur := i.Start; cur.Add(step) <= i.End; cur = cur.Add(step) {
		pieces = append(pieces, Interval{Start: cur, End: cur.Add(step)})
	}
	return pieces, nil
}

// DateOf strips the clock from t and returns midnight UTC of the same
// calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Dates returns every calendar day in the inclusive range [from, to].
func Dates(from, to time.Time) []time.Time {
	from, to = DateOf(from), DateOf(to)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
