package attendance

import (
	"context"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/store"
)

// Store is the persistence surface the session manager and recorder need.
// *store.Store satisfies it; tests use in-memory fakes.
type Store interface {
	GetSubject(ctx context.Context, id string) (*model.Subject, error)
	GetSubjectByNameCode(ctx context.Context, name, code string) (*model.Subject, error)
	GetEnrollment(ctx context.Context, studentID, subjectID string) (*model.Enrollment, error)

	StartSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ActiveSession(ctx context.Context, subjectID string) (*model.Session, error)
	FinalizeSession(ctx context.Context, sessionID, subjectID string, fins []store.RecordFinalization, checkOut time.Time) (store.FinalizeCounts, error)

	GetRecord(ctx context.Context, sessionID, studentID string) (*model.Record, error)
	InsertPendingRecord(ctx context.Context, rec *model.Record) error
	FinalizeRecord(ctx context.Context, recordID string, status model.RecordStatus, isLate bool, checkOut time.Time) (bool, error)
	OverrideRecord(ctx context.Context, sessionID, studentID string, status model.RecordStatus) error
	ListPendingRecords(ctx context.Context, sessionID string) ([]model.Record, error)
	ListRecords(ctx context.Context, sessionID string) ([]model.Record, error)
}
