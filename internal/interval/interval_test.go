package interval

import (
	"errors"
	"testing"
	"time"
)

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := ParseTimeOfDay(start)
	if err != nil {
		t.Fatalf("parse %q: %v", start, err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		t.Fatalf("parse %q: %v", end, err)
	}
	out, err := New(s, e)
	if err != nil {
		t.Fatalf("new interval: %v", err)
	}
	return out
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b [2]string
		want bool
	}{
		{"touching end to start", [2]string{"09:00", "10:00"}, [2]string{"10:00", "11:00"}, false},
		{"partial overlap", [2]string{"09:00", "12:00"}, [2]string{"11:00", "13:00"}, true},
		{"contained", [2]string{"09:00", "12:00"}, [2]string{"10:00", "10:30"}, true},
		{"identical", [2]string{"09:00", "09:30"}, [2]string{"09:00", "09:30"}, true},
		{"disjoint", [2]string{"08:00", "09:00"}, [2]string{"13:00", "14:00"}, false},
		{"same start", [2]string{"09:00", "09:15"}, [2]string{"09:00", "10:00"}, true},
		{"same end", [2]string{"09:45", "10:00"}, [2]string{"09:00", "10:00"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := iv(t, tc.a[0], tc.a[1])
			b := iv(t, tc.b[0], tc.b[1])
			if got := Overlaps(a, b); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", a, b, got, tc.want)
			}
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Errorf("Overlaps not symmetric for %s and %s", a, b)
			}
		})
	}
}

func TestOverlapsSymmetricExhaustive(t *testing.T) {
	// every pair of intervals on a quarter-hour grid between 08:00 and 10:00
	var all []Interval
	for s := Clock(8, 0); s < Clock(10, 0); s += 15 {
		for e := s + 15; e <= Clock(10, 0); e += 15 {
			all = append(all, Interval{Start: s, End: e})
		}
	}

	for _, a := range all {
		for _, b := range all {
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("asymmetric: %s vs %s", a, b)
			}
			if a.End == b.Start && Overlaps(a, b) {
				t.Fatalf("touching intervals overlap: %s vs %s", a, b)
			}
		}
	}
}

func TestNewRejectsEmptyRange(t *testing.T) {
	_, err := New(Clock(10, 0), Clock(10, 0))
	if !errors.Is(err, ErrEmptyRange) {
		t.Fatalf("expected ErrEmptyRange, got %v", err)
	}
	_, err = New(Clock(11, 0), Clock(10, 0))
	if !errors.Is(err, ErrEmptyRange) {
		t.Fatalf("expected ErrEmptyRange, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Clock(9, 30) || got.String() != "09:30" {
		t.Errorf("got %v (%d)", got, int(got))
	}

	if _, err := ParseTimeOfDay("9.30"); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}

	end, err := ParseTimeOfDay("24:00")
	if err != nil || end != MinutesPerDay {
		t.Errorf("24:00 = %v, %v", end, err)
	}
}

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		span [2]string
		step time.Duration
		want []string
	}{
		{"exact fit", [2]string{"09:00", "10:00"}, 30 * time.Minute, []string{"[09:00, 09:30)", "[09:30, 10:00)"}},
		{"trailing remainder dropped", [2]string{"09:00", "09:50"}, 30 * time.Minute, []string{"[09:00, 09:30)"}},
		{"step longer than range", [2]string{"09:00", "09:20"}, 30 * time.Minute, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pieces, err := iv(t, tc.span[0], tc.span[1]).Split(tc.step)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(pieces) != len(tc.want) {
				t.Fatalf("got %d pieces %v, want %d", len(pieces), pieces, len(tc.want))
			}
			for i, p := range pieces {
				if p.String() != tc.want[i] {
					t.Errorf("piece %d = %s, want %s", i, p, tc.want[i])
				}
			}
		})
	}
}

func TestSplitRejectsBadStep(t *testing.T) {
	span := Interval{Start: Clock(9, 0), End: Clock(10, 0)}
	for _, step := range []time.Duration{0, -time.Minute, 90 * time.Second} {
		if _, err := span.Split(step); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("step %s: expected ErrInvalidStep, got %v", step, err)
		}
	}
}

func TestDates(t *testing.T) {
	from := time.Date(2025, 3, 30, 15, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 2, 1, 0, 0, 0, time.UTC)

	days := Dates(from, to)
	if len(days) != 4 {
		t.Fatalf("expected 4 days, got %d", len(days))
	}
	if FormatDate(days[0]) != "2025-03-30" || FormatDate(days[3]) != "2025-04-02" {
		t.Errorf("unexpected range %v..%v", days[0], days[3])
	}
	if len(Dates(to, from)) != 0 {
		t.Error("expected empty range when to precedes from")
	}
}

func TestDetector(t *testing.T) {
	d := NewDetector[string]()
	d.Add("room-1", Interval{Start: Clock(9, 0), End: Clock(9, 30)})

	if !d.Collides("room-1", Interval{Start: Clock(9, 15), End: Clock(9, 45)}) {
		t.Error("expected collision inside the same group")
	}
	if d.Collides("room-1", Interval{Start: Clock(9, 30), End: Clock(10, 0)}) {
		t.Error("touching interval should not collide")
	}
	if d.Collides("room-2", Interval{Start: Clock(9, 0), End: Clock(9, 30)}) {
		t.Error("different group should not collide")
	}
	if d.Len("room-1") != 1 || d.Len("room-2") != 0 {
		t.Error("unexpected group sizes")
	}
}
