package attendance

import (
	"testing"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

var sessionStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestMinutesLate(t *testing.T) {
	cases := []struct {
		offset time.Duration
		want   int
	}{
		{0, 0},
		{59 * time.Second, 0},
		{10 * time.Minute, 10},
		{15*time.Minute + 59*time.Second, 15},
		{16 * time.Minute, 16},
		{-2 * time.Minute, -2},
	}
	for _, tc := range cases {
		if got := MinutesLate(sessionStart.Add(tc.offset), sessionStart); got != tc.want {
			t.Errorf("MinutesLate(+%v) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

// Boundary: exactly at the threshold is on time, one minute past is late.
func TestClassifyBoundary(t *testing.T) {
	const threshold = 15

	status, isLate := Classify(sessionStart.Add(15*time.Minute), sessionStart, threshold)
	if status != model.StatusPresent || isLate {
		t.Fatalf("at threshold: got %s/%v, want present/false", status, isLate)
	}

	status, isLate = Classify(sessionStart.Add(16*time.Minute), sessionStart, threshold)
	if status != model.StatusLate || !isLate {
		t.Fatalf("past threshold: got %s/%v, want late/true", status, isLate)
	}
}

// Scenario: threshold 15, session at 09:00. Check-in 09:10 is present,
// check-in 09:20 is late.
func TestClassifyScenarios(t *testing.T) {
	status, _ := Classify(sessionStart.Add(10*time.Minute), sessionStart, 15)
	if status != model.StatusPresent {
		t.Fatalf("09:10 check-in: got %s, want present", status)
	}
	status, _ = Classify(sessionStart.Add(20*time.Minute), sessionStart, 15)
	if status != model.StatusLate {
		t.Fatalf("09:20 check-in: got %s, want late", status)
	}
}

func TestSessionStartsAt(t *testing.T) {
	sess := model.Session{
		ID:        "s1",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "09:00:00",
	}
	got, err := sess.StartsAt()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(sessionStart) {
		t.Fatalf("StartsAt = %v, want %v", got, sessionStart)
	}

	sess.TimeOfDay = "not-a-time"
	if _, err := sess.StartsAt(); err == nil {
		t.Fatal("expected error for malformed time of day")
	}
}
