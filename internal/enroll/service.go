// Package enroll manages durable student membership in subjects.
package enroll

import (
	"context"
	"errors"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetSubjectByNameCode(ctx context.Context, name, code string) (*model.Subject, error)
	GetEnrollment(ctx context.Context, studentID, subjectID string) (*model.Enrollment, error)
	InsertEnrollment(ctx context.Context, e *model.Enrollment) error
	DeleteEnrollment(ctx context.Context, studentID, subjectID string) error
}

// Service enrolls students into subjects found by name+code.
type Service struct {
	store Store
}

// NewService creates the enrollment service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Enroll idempotently enrolls a student into the subject identified by
// trimmed name+code. An existing enrollment comes back as a conflict naming
// the subject; under concurrent retries the unique (student, subject)
// constraint guarantees a single row and the loser sees the same conflict.
func (s *Service) Enroll(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Subject, error) {
	sub, err := s.store.GetSubjectByNameCode(ctx, subjectName, subjectCode)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound(apperr.ReasonSubject, "subject not found")
	}

	// Friendliness fast path; the constraint below is the real guard.
	existing, err := s.store.GetEnrollment(ctx, studentID, sub.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(apperr.ReasonAlreadyEnrolled, "already enrolled in "+sub.Display())
	}

	enr := &model.Enrollment{StudentID: studentID, SubjectID: sub.ID}
	if err := s.store.InsertEnrollment(ctx, enr); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.ReasonAlreadyEnrolled, "already enrolled in "+sub.Display())
		}
		return nil, err
	}
	return sub, nil
}

// Unenroll removes a student from a subject's roster.
func (s *Service) Unenroll(ctx context.Context, studentID, subjectID string) error {
	return s.store.DeleteEnrollment(ctx, studentID, subjectID)
}
