package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/scan"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// Manager owns the session lifecycle: start, stop, active lookup.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a session manager. The clock defaults to time.Now.
func NewManager(st Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// StopSummary is the teacher-facing report of what stopping a session did.
type StopSummary struct {
	SessionID        string `json:"session_id"`
	TotalEnrolled    int    `json:"total_enrolled"`
	AlreadyMarked    int    `json:"already_marked"`
	NewlyAbsent      int    `json:"newly_absent"`
	PendingProcessed int    `json:"pending_processed"`
}

// Start opens a new active session for the subject at the given instant,
// deactivating any prior active session in the same transaction. The stored
// date and time-of-day are the instant the teacher pressed start; the late
// threshold is measured from them.
func (m *Manager) Start(ctx context.Context, subjectID string, at time.Time) (*model.Session, error) {
	sub, err := m.store.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}
	if at.IsZero() {
		at = m.now()
	}
	sess := &model.Session{
		SubjectID:    subjectID,
		Date:         time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location()),
		TimeOfDay:    at.Format("15:04:05"),
		AttendanceQR: scan.CheckInPayload(*sub, at),
	}
	if err := m.store.StartSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Active returns the subject's active session, nil when there is none.
func (m *Manager) Active(ctx context.Context, subjectID string) (*model.Session, error) {
	return m.store.ActiveSession(ctx, subjectID)
}

// Stop finalizes a session: every pending record is classified against the
// subject's late threshold, enrolled students with no record at all get an
// absent record, the session is deactivated and its manual codes are cleared.
// This is the only place absentee backfill happens. Re-stopping an already
// stopped session is harmless: finalized records are never reclassified and
// the backfill only fills gaps.
func (m *Manager) Stop(ctx context.Context, sessionID string) (*StopSummary, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound(apperr.ReasonSession, "session not found")
	}
	sub, err := m.store.GetSubject(ctx, sess.SubjectID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}
	start, err := sess.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}

	pending, err := m.store.ListPendingRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fins := make([]store.RecordFinalization, 0, len(pending))
	for _, rec := range pending {
		if rec.CheckInTime == nil {
			// Check-in always stamps the time; a pending record without one
			// resolves to absent rather than guessing a lateness.
			fins = append(fins, store.RecordFinalization{RecordID: rec.ID, Status: model.StatusAbsent})
			continue
		}
		status, isLate := Classify(*rec.CheckInTime, start, sub.LateThresholdMinutes)
		fins = append(fins, store.RecordFinalization{RecordID: rec.ID, Status: status, IsLate: isLate})
	}

	counts, err := m.store.FinalizeSession(ctx, sessionID, sess.SubjectID, fins, m.now())
	if err != nil {
		return nil, err
	}
	return &StopSummary{
		SessionID:        sessionID,
		TotalEnrolled:    counts.Enrolled,
		AlreadyMarked:    counts.Enrolled - counts.NewlyAbsent,
		NewlyAbsent:      counts.NewlyAbsent,
		PendingProcessed: len(fins),
	}, nil
}
