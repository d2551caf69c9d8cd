package attendance

import (
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// MinutesLate is how many whole minutes a check-in falls after the session
// start, from millisecond subtraction. Negative when the student is early.
func MinutesLate(checkIn, sessionStart time.Time) int {
	return int(checkIn.Sub(sessionStart).Milliseconds() / 60000)
}

// Classify turns a check-in instant into the final status. Late only when the
// elapsed whole minutes strictly exceed the threshold; exactly at the
// threshold is on time.
func Classify(checkIn, sessionStart time.Time, thresholdMinutes int) (model.RecordStatus, bool) {
	if MinutesLate(checkIn, sessionStart) > thresholdMinutes {
		return model.StatusLate, true
	}
	return model.StatusPresent, false
}
