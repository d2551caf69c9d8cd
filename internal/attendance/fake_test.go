package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// fakeStore is an in-memory Store mirroring the SQL store's contract,
// including the constraint-driven behaviors the services rely on.
type fakeStore struct {
	subjects     map[string]*model.Subject
	enrollments  map[string]map[string]bool // subjectID -> studentIDs
	sessions     map[string]*model.Session
	records      map[string]*model.Record // by record id
	codesCleared int
	nextID       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects:    make(map[string]*model.Subject),
		enrollments: make(map[string]map[string]bool),
		sessions:    make(map[string]*model.Session),
		records:     make(map[string]*model.Record),
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) addSubject(sub model.Subject) *model.Subject {
	if sub.ID == "" {
		sub.ID = f.id()
	}
	if sub.LateThresholdMinutes == 0 {
		sub.LateThresholdMinutes = model.DefaultLateThresholdMinutes
	}
	f.subjects[sub.ID] = &sub
	return &sub
}

func (f *fakeStore) enroll(studentID, subjectID string) {
	if f.enrollments[subjectID] == nil {
		f.enrollments[subjectID] = make(map[string]bool)
	}
	f.enrollments[subjectID][studentID] = true
}

func (f *fakeStore) recordFor(sessionID, studentID string) *model.Record {
	for _, rec := range f.records {
		if rec.SessionID == sessionID && rec.StudentID == studentID {
			return rec
		}
	}
	return nil
}

func (f *fakeStore) activeSessions(subjectID string) int {
	n := 0
	for _, sess := range f.sessions {
		if sess.SubjectID == subjectID && sess.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeStore) GetSubject(_ context.Context, id string) (*model.Subject, error) {
	return f.subjects[id], nil
}

func (f *fakeStore) GetSubjectByNameCode(_ context.Context, name, code string) (*model.Subject, error) {
	for _, sub := range f.subjects {
		if sub.Name == name && sub.Code == code {
			return sub, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, studentID, subjectID string) (*model.Enrollment, error) {
	if f.enrollments[subjectID][studentID] {
		return &model.Enrollment{StudentID: studentID, SubjectID: subjectID}, nil
	}
	return nil, nil
}

func (f *fakeStore) StartSession(_ context.Context, sess *model.Session) error {
	for _, s := range f.sessions {
		if s.SubjectID == sess.SubjectID {
			s.IsActive = false
		}
	}
	if sess.ID == "" {
		sess.ID = f.id()
	}
	sess.IsActive = true
	f.sessions[sess.ID] = sess
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeStore) ActiveSession(_ context.Context, subjectID string) (*model.Session, error) {
	for _, sess := range f.sessions {
		if sess.SubjectID == subjectID && sess.IsActive {
			return sess, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FinalizeSession(_ context.Context, sessionID, subjectID string, fins []store.RecordFinalization, checkOut time.Time) (store.FinalizeCounts, error) {
	for _, fin := range fins {
		rec, ok := f.records[fin.RecordID]
		if !ok || rec.Status != model.StatusPending {
			continue
		}
		rec.Status = fin.Status
		rec.IsLate = fin.IsLate
		out := checkOut
		rec.CheckOutTime = &out
	}
	var counts store.FinalizeCounts
	counts.Enrolled = len(f.enrollments[subjectID])
	for studentID := range f.enrollments[subjectID] {
		if f.recordFor(sessionID, studentID) == nil {
			rec := &model.Record{ID: f.id(), SessionID: sessionID, StudentID: studentID, Status: model.StatusAbsent}
			f.records[rec.ID] = rec
			counts.NewlyAbsent++
		}
	}
	if sess, ok := f.sessions[sessionID]; ok {
		sess.IsActive = false
	}
	f.codesCleared++
	return counts, nil
}

func (f *fakeStore) GetRecord(_ context.Context, sessionID, studentID string) (*model.Record, error) {
	return f.recordFor(sessionID, studentID), nil
}

func (f *fakeStore) InsertPendingRecord(_ context.Context, rec *model.Record) error {
	if f.recordFor(rec.SessionID, rec.StudentID) != nil {
		return store.ErrDuplicate
	}
	if rec.ID == "" {
		rec.ID = f.id()
	}
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func (f *fakeStore) FinalizeRecord(_ context.Context, recordID string, status model.RecordStatus, isLate bool, checkOut time.Time) (bool, error) {
	rec, ok := f.records[recordID]
	if !ok || rec.Status != model.StatusPending {
		return false, nil
	}
	rec.Status = status
	rec.IsLate = isLate
	out := checkOut
	rec.CheckOutTime = &out
	return true, nil
}

func (f *fakeStore) OverrideRecord(_ context.Context, sessionID, studentID string, status model.RecordStatus) error {
	rec := f.recordFor(sessionID, studentID)
	if rec == nil {
		rec = &model.Record{ID: f.id(), SessionID: sessionID, StudentID: studentID}
		f.records[rec.ID] = rec
	}
	rec.Status = status
	rec.IsLate = status == model.StatusLate
	return nil
}

func (f *fakeStore) ListPendingRecords(_ context.Context, sessionID string) ([]model.Record, error) {
	var out []model.Record
	for _, rec := range f.records {
		if rec.SessionID == sessionID && rec.Status == model.StatusPending {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecords(_ context.Context, sessionID string) ([]model.Record, error) {
	var out []model.Record
	for _, rec := range f.records {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}
