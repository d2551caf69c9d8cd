package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

func clockAt(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// seedSession creates subject CS201 (threshold 15), enrolls stu1, and starts
// a session at 2026-03-02 09:00:00 UTC.
func seedSession(t *testing.T, f *fakeStore) *model.Session {
	t.Helper()
	sub := f.addSubject(model.Subject{ID: "sub1", Name: "Data Structures", Code: "CS201", LateThresholdMinutes: 15})
	f.enroll("stu1", sub.ID)
	sess := &model.Session{
		SubjectID: sub.ID,
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "09:00:00",
	}
	if err := f.StartSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestCheckInOpensPendingRecord(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	checkInAt := sessionStart.Add(10 * time.Minute)
	r := NewRecorder(f).WithClock(clockAt(checkInAt))

	rec, err := r.CheckIn(context.Background(), sess.ID, "stu1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
	if rec.CheckInTime == nil || !rec.CheckInTime.Equal(checkInAt) {
		t.Fatalf("check-in time = %v, want %v", rec.CheckInTime, checkInAt)
	}
	if rec.IsLate {
		t.Fatal("10 minutes in with threshold 15 should not be flagged late")
	}
}

func TestCheckInAdvisoryLateFlag(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(20 * time.Minute)))

	rec, err := r.CheckIn(context.Background(), sess.ID, "stu1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.IsLate {
		t.Fatal("20 minutes in with threshold 15 should be flagged late")
	}
	if rec.Status != model.StatusPending {
		t.Fatalf("late flag must not finalize the record, got %s", rec.Status)
	}
}

func TestCheckInRequiresActiveSession(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	f.sessions[sess.ID].IsActive = false
	r := NewRecorder(f)

	_, err := r.CheckIn(context.Background(), sess.ID, "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonNoActiveSession {
		t.Fatalf("err = %v, want no-active-session", err)
	}

	_, err = r.CheckIn(context.Background(), "missing", "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonNoActiveSession {
		t.Fatalf("err = %v, want no-active-session", err)
	}
}

func TestCheckInRequiresEnrollment(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	r := NewRecorder(f)

	_, err := r.CheckIn(context.Background(), sess.ID, "stranger")
	if apperr.KindOf(err) != apperr.KindForbidden || apperr.ReasonOf(err) != apperr.ReasonNotEnrolled {
		t.Fatalf("err = %v, want forbidden/not-enrolled", err)
	}
}

func TestDoubleCheckInConflicts(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(5 * time.Minute)))
	ctx := context.Background()

	if _, err := r.CheckIn(ctx, sess.ID, "stu1"); err != nil {
		t.Fatal(err)
	}
	_, err := r.CheckIn(ctx, sess.ID, "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonAlreadyCheckedIn {
		t.Fatalf("err = %v, want already-checked-in", err)
	}

	// Exactly one record exists for the pair.
	recs, _ := f.ListRecords(ctx, sess.ID)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
}

func TestCheckOutClassifiesOnTimeAndLate(t *testing.T) {
	cases := []struct {
		name       string
		checkInAt  time.Duration
		checkOutAt time.Duration
		want       model.RecordStatus
	}{
		{"within threshold", 10 * time.Minute, 20 * time.Minute, model.StatusPresent},
		{"past threshold", 20 * time.Minute, 25 * time.Minute, model.StatusLate},
		{"exactly at threshold", 15 * time.Minute, 40 * time.Minute, model.StatusPresent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeStore()
			sess := seedSession(t, f)
			ctx := context.Background()
			r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(tc.checkInAt)))

			if _, err := r.CheckIn(ctx, sess.ID, "stu1"); err != nil {
				t.Fatal(err)
			}
			r.WithClock(clockAt(sessionStart.Add(tc.checkOutAt)))
			rec, err := r.CheckOut(ctx, sess.ID, "stu1")
			if err != nil {
				t.Fatal(err)
			}
			if rec.Status != tc.want {
				t.Fatalf("status = %s, want %s", rec.Status, tc.want)
			}
			if rec.CheckOutTime == nil {
				t.Fatal("check-out time not stamped")
			}
			if (rec.Status == model.StatusLate) != rec.IsLate {
				t.Fatalf("is_late = %v inconsistent with status %s", rec.IsLate, rec.Status)
			}
		})
	}
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	r := NewRecorder(f)

	_, err := r.CheckOut(context.Background(), sess.ID, "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonNoCheckIn {
		t.Fatalf("err = %v, want no-checkin", err)
	}
}

func TestCheckOutTwiceConflicts(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	ctx := context.Background()
	r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(5 * time.Minute)))

	if _, err := r.CheckIn(ctx, sess.ID, "stu1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CheckOut(ctx, sess.ID, "stu1"); err != nil {
		t.Fatal(err)
	}
	_, err := r.CheckOut(ctx, sess.ID, "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonAlreadyFinalized {
		t.Fatalf("err = %v, want already-finalized", err)
	}
}

func TestScanAfterFinalizationConflicts(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	ctx := context.Background()
	r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(5 * time.Minute)))

	if _, err := r.CheckIn(ctx, sess.ID, "stu1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CheckOut(ctx, sess.ID, "stu1"); err != nil {
		t.Fatal(err)
	}
	_, err := r.CheckIn(ctx, sess.ID, "stu1")
	if apperr.ReasonOf(err) != apperr.ReasonAlreadyFinalized {
		t.Fatalf("err = %v, want already-finalized", err)
	}
}

func TestOverride(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	ctx := context.Background()
	r := NewRecorder(f)

	// Creates the record when the student never scanned.
	if err := r.Override(ctx, sess.ID, "stu1", model.StatusPresent); err != nil {
		t.Fatal(err)
	}
	rec := f.recordFor(sess.ID, "stu1")
	if rec == nil || rec.Status != model.StatusPresent {
		t.Fatalf("record = %+v, want present", rec)
	}

	// Rewrites a finalized record; only overrides may do that.
	if err := r.Override(ctx, sess.ID, "stu1", model.StatusAbsent); err != nil {
		t.Fatal(err)
	}
	if rec := f.recordFor(sess.ID, "stu1"); rec.Status != model.StatusAbsent {
		t.Fatalf("status = %s, want absent", rec.Status)
	}

	if err := r.Override(ctx, sess.ID, "stu1", model.StatusPending); apperr.KindOf(err) != apperr.KindFormat {
		t.Fatalf("pending override: err = %v, want format error", err)
	}
	if err := r.Override(ctx, "missing", "stu1", model.StatusAbsent); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("missing session: err = %v, want not found", err)
	}
}

func TestCheckInSubjectResolvesActiveSession(t *testing.T) {
	f := newFakeStore()
	sess := seedSession(t, f)
	r := NewRecorder(f).WithClock(clockAt(sessionStart.Add(3 * time.Minute)))
	ctx := context.Background()

	rec, err := r.CheckInSubject(ctx, "stu1", "Data Structures", "CS201")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SessionID != sess.ID {
		t.Fatalf("session = %s, want %s", rec.SessionID, sess.ID)
	}

	if _, err := r.CheckInSubject(ctx, "stu1", "Nope", "XX"); apperr.ReasonOf(err) != apperr.ReasonSubject {
		t.Fatalf("unknown subject: err = %v", err)
	}

	f.sessions[sess.ID].IsActive = false
	if _, err := r.CheckInSubject(ctx, "stu1", "Data Structures", "CS201"); apperr.ReasonOf(err) != apperr.ReasonNoActiveSession {
		t.Fatalf("no active session: err = %v", err)
	}
}
