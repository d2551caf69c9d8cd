package enroll

import (
	"context"
	"strings"
	"testing"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

type fakeStore struct {
	subjects []model.Subject
	rows     map[string]bool // studentID|subjectID
	// hideExisting simulates a racing enroll that slipped past the
	// fast-path read but hits the unique constraint.
	hideExisting bool
}

func newFakeStore(subjects ...model.Subject) *fakeStore {
	return &fakeStore{subjects: subjects, rows: make(map[string]bool)}
}

func key(studentID, subjectID string) string { return studentID + "|" + subjectID }

func (f *fakeStore) GetSubjectByNameCode(_ context.Context, name, code string) (*model.Subject, error) {
	for i := range f.subjects {
		if f.subjects[i].Name == name && f.subjects[i].Code == code {
			return &f.subjects[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, studentID, subjectID string) (*model.Enrollment, error) {
	if !f.hideExisting && f.rows[key(studentID, subjectID)] {
		return &model.Enrollment{StudentID: studentID, SubjectID: subjectID}, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertEnrollment(_ context.Context, e *model.Enrollment) error {
	k := key(e.StudentID, e.SubjectID)
	if f.rows[k] {
		return store.ErrDuplicate
	}
	f.rows[k] = true
	return nil
}

func (f *fakeStore) DeleteEnrollment(_ context.Context, studentID, subjectID string) error {
	delete(f.rows, key(studentID, subjectID))
	return nil
}

var dataStructures = model.Subject{ID: "sub1", Name: "Data Structures", Code: "CS201"}

func TestEnrollThenConflict(t *testing.T) {
	f := newFakeStore(dataStructures)
	s := NewService(f)
	ctx := context.Background()

	sub, err := s.Enroll(ctx, "stu1", "Data Structures", "CS201")
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID != "sub1" {
		t.Fatalf("subject = %s, want sub1", sub.ID)
	}

	_, err = s.Enroll(ctx, "stu1", "Data Structures", "CS201")
	if apperr.KindOf(err) != apperr.KindConflict || apperr.ReasonOf(err) != apperr.ReasonAlreadyEnrolled {
		t.Fatalf("err = %v, want conflict/already-enrolled", err)
	}
	if !strings.Contains(err.Error(), "Data Structures (CS201)") {
		t.Fatalf("conflict message should name the subject, got %q", err.Error())
	}
	if len(f.rows) != 1 {
		t.Fatalf("rows = %d, want exactly 1", len(f.rows))
	}
}

func TestEnrollConstraintWinsTheRace(t *testing.T) {
	f := newFakeStore(dataStructures)
	s := NewService(f)
	ctx := context.Background()

	if _, err := s.Enroll(ctx, "stu1", "Data Structures", "CS201"); err != nil {
		t.Fatal(err)
	}
	// The fast-path read misses the concurrent row; the constraint catches it.
	f.hideExisting = true
	_, err := s.Enroll(ctx, "stu1", "Data Structures", "CS201")
	if apperr.ReasonOf(err) != apperr.ReasonAlreadyEnrolled {
		t.Fatalf("err = %v, want already-enrolled from constraint path", err)
	}
	if len(f.rows) != 1 {
		t.Fatalf("rows = %d, want exactly 1", len(f.rows))
	}
}

func TestEnrollUnknownSubject(t *testing.T) {
	s := NewService(newFakeStore(dataStructures))
	_, err := s.Enroll(context.Background(), "stu1", "Algorithms", "CS301")
	if apperr.KindOf(err) != apperr.KindNotFound || apperr.ReasonOf(err) != apperr.ReasonSubject {
		t.Fatalf("err = %v, want not-found/subject", err)
	}
}

func TestUnenroll(t *testing.T) {
	f := newFakeStore(dataStructures)
	s := NewService(f)
	ctx := context.Background()

	if _, err := s.Enroll(ctx, "stu1", "Data Structures", "CS201"); err != nil {
		t.Fatal(err)
	}
	if err := s.Unenroll(ctx, "stu1", "sub1"); err != nil {
		t.Fatal(err)
	}
	if len(f.rows) != 0 {
		t.Fatal("enrollment row not removed")
	}
}
