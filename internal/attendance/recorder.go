package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// Recorder owns the per-(session, student) check-in/check-out state machine:
// NoRecord -> Pending -> {Present | Late}, with absent backfill reserved for
// session stop and teacher overrides allowed from any state.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a recorder. The clock defaults to time.Now.
func NewRecorder(st Store) *Recorder {
	return &Recorder{store: st, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// CheckIn opens a pending record for the student in an active session. The
// is_late flag stamped here is advisory display only; the authoritative
// late/present decision is recomputed at check-out or session stop, so a
// threshold changed mid-session is honored.
func (r *Recorder) CheckIn(ctx context.Context, sessionID, studentID string) (*model.Record, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsActive {
		return nil, apperr.NotFound(apperr.ReasonNoActiveSession, "no active session")
	}
	enr, err := r.store.GetEnrollment(ctx, studentID, sess.SubjectID)
	if err != nil {
		return nil, err
	}
	if enr == nil {
		return nil, apperr.Forbidden(apperr.ReasonNotEnrolled, "not enrolled in this subject")
	}
	if existing, err := r.store.GetRecord(ctx, sessionID, studentID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, recordConflict(existing.Status)
	}

	sub, err := r.store.GetSubject(ctx, sess.SubjectID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}
	start, err := sess.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}

	now := r.now()
	rec := &model.Record{
		SessionID:   sessionID,
		StudentID:   studentID,
		Status:      model.StatusPending,
		CheckInTime: &now,
		IsLate:      MinutesLate(now, start) > sub.LateThresholdMinutes,
	}
	if err := r.store.InsertPendingRecord(ctx, rec); err != nil {
		// A concurrent scan won the unique (session, student) race.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.ReasonAlreadyCheckedIn, "already checked in for this session")
		}
		return nil, err
	}
	return rec, nil
}

// CheckOut finalizes the student's pending record to present or late using
// the same lateness math session stop uses.
func (r *Recorder) CheckOut(ctx context.Context, sessionID, studentID string) (*model.Record, error) {
	rec, err := r.store.GetRecord(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFound(apperr.ReasonNoCheckIn, "no check-in found for this session")
	}
	if rec.Status != model.StatusPending {
		return nil, apperr.Conflict(apperr.ReasonAlreadyFinalized, "attendance already finalized")
	}
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound(apperr.ReasonSession, "session not found")
	}
	sub, err := r.store.GetSubject(ctx, sess.SubjectID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}
	start, err := sess.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("check out: %w", err)
	}

	now := r.now()
	checkIn := now
	if rec.CheckInTime != nil {
		checkIn = *rec.CheckInTime
	}
	status, isLate := Classify(checkIn, start, sub.LateThresholdMinutes)
	ok, err := r.store.FinalizeRecord(ctx, rec.ID, status, isLate, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another check-out or with session stop.
		return nil, apperr.Conflict(apperr.ReasonAlreadyFinalized, "attendance already finalized")
	}
	rec.Status = status
	rec.IsLate = isLate
	rec.CheckOutTime = &now
	return rec, nil
}

// Override is the teacher correction path: it sets the given terminal status
// regardless of the record's current state, creating the record when the
// student never scanned. Lateness is not recomputed.
func (r *Recorder) Override(ctx context.Context, sessionID, studentID string, status model.RecordStatus) error {
	if !status.Terminal() {
		return apperr.Format(apperr.ReasonBadStatus, "status must be present, late or absent")
	}
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return apperr.NotFound(apperr.ReasonSession, "session not found")
	}
	return r.store.OverrideRecord(ctx, sessionID, studentID, status)
}

// CheckInSubject resolves the subject by name+code and checks the student in
// to its active session. This is the scan path.
func (r *Recorder) CheckInSubject(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Record, error) {
	sess, err := r.activeSessionByNameCode(ctx, subjectName, subjectCode)
	if err != nil {
		return nil, err
	}
	return r.CheckIn(ctx, sess.ID, studentID)
}

// CheckOutSubject resolves the subject by name+code and checks the student
// out of its active session.
func (r *Recorder) CheckOutSubject(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Record, error) {
	sess, err := r.activeSessionByNameCode(ctx, subjectName, subjectCode)
	if err != nil {
		return nil, err
	}
	return r.CheckOut(ctx, sess.ID, studentID)
}

// Records lists every record in a session.
func (r *Recorder) Records(ctx context.Context, sessionID string) ([]model.Record, error) {
	return r.store.ListRecords(ctx, sessionID)
}

func (r *Recorder) activeSessionByNameCode(ctx context.Context, name, code string) (*model.Session, error) {
	sub, err := r.store.GetSubjectByNameCode(ctx, name, code)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}
	sess, err := r.store.ActiveSession(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound(apperr.ReasonNoActiveSession, "no active session for "+sub.Display())
	}
	return sess, nil
}

func recordConflict(status model.RecordStatus) error {
	if status == model.StatusPending {
		return apperr.Conflict(apperr.ReasonAlreadyCheckedIn, "already checked in for this session")
	}
	return apperr.Conflict(apperr.ReasonAlreadyFinalized, "attendance already finalized")
}
