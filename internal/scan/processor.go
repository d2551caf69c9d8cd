package scan

import (
	"context"
	"errors"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// Enroller is the enrollment side of payload dispatch.
type Enroller interface {
	Enroll(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Subject, error)
}

// Attender is the attendance side of payload dispatch.
type Attender interface {
	CheckInSubject(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Record, error)
	CheckOutSubject(ctx context.Context, studentID, subjectName, subjectCode string) (*model.Record, error)
}

// Outcome is the structured result every scan returns. The UI branches on
// Type to pick the right banner, so enrollment and attendance results are
// never collapsed into one shape.
type Outcome struct {
	Type    string        `json:"type"` // enrollment | attendance | error
	Message string        `json:"message"`
	Success bool          `json:"success"`
	Record  *model.Record `json:"record,omitempty"`
}

const (
	OutcomeEnrollment = "enrollment"
	OutcomeAttendance = "attendance"
	OutcomeError      = "error"
)

// Processor interprets a payload and dispatches it to the owning service.
type Processor struct {
	enroller Enroller
	attender Attender
}

// NewProcessor creates a payload dispatcher.
func NewProcessor(e Enroller, a Attender) *Processor {
	return &Processor{enroller: e, attender: a}
}

// Process parses the payload and runs the matching operation. Expected
// business outcomes (bad format, not found, not enrolled, conflicts) come
// back inside the Outcome with Success=false; only store or programming
// failures surface as an error.
func (p *Processor) Process(ctx context.Context, studentID, payload string) (Outcome, error) {
	intent, err := Parse(payload)
	if err != nil {
		return Outcome{Type: OutcomeError, Message: err.Error()}, nil
	}

	switch it := intent.(type) {
	case EnrollIntent:
		sub, err := p.enroller.Enroll(ctx, studentID, it.SubjectName, it.SubjectCode)
		if err != nil {
			return reportable(OutcomeEnrollment, err)
		}
		return Outcome{Type: OutcomeEnrollment, Message: "enrolled in " + sub.Display(), Success: true}, nil

	case CheckInIntent:
		rec, err := p.attender.CheckInSubject(ctx, studentID, it.SubjectName, it.SubjectCode)
		if err != nil {
			return reportable(OutcomeAttendance, err)
		}
		msg := "checked in"
		if rec.IsLate {
			msg = "checked in (running late)"
		}
		return Outcome{Type: OutcomeAttendance, Message: msg, Success: true, Record: rec}, nil

	case CheckOutIntent:
		rec, err := p.attender.CheckOutSubject(ctx, studentID, it.SubjectName, it.SubjectCode)
		if err != nil {
			return reportable(OutcomeAttendance, err)
		}
		return Outcome{Type: OutcomeAttendance, Message: "checked out: " + string(rec.Status), Success: true, Record: rec}, nil

	default:
		return Outcome{Type: OutcomeError, Message: "unrecognized code"}, nil
	}
}

// reportable folds expected error kinds into an Outcome and passes system
// failures through.
func reportable(outcomeType string, err error) (Outcome, error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindForbidden, apperr.KindConflict, apperr.KindFormat:
		msg := err.Error()
		var e *apperr.Error
		if errors.As(err, &e) && e.Message != "" {
			msg = e.Message
		}
		return Outcome{Type: outcomeType, Message: msg}, nil
	}
	return Outcome{}, err
}
