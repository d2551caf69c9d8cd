package model

import (
	"fmt"
	"time"
)

// Role identifies what a user may do.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// User is the minimal identity row other entities reference.
// Registration and password handling live outside this service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultLateThresholdMinutes applies when a subject is created without one.
const DefaultLateThresholdMinutes = 15

// Subject is a class a teacher runs and students enroll in.
// Name and code together are the external identifier carried in QR payloads.
type Subject struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Code                 string    `json:"code"`
	TeacherID            string    `json:"teacher_id"`
	ScheduleDays         []string  `json:"schedule_days"`
	StartTime            string    `json:"start_time"`
	EndTime              string    `json:"end_time"`
	LateThresholdMinutes int       `json:"late_threshold_minutes"`
	CreatedAt            time.Time `json:"created_at"`
}

// Display renders the "Name (CODE)" form used in payloads and messages.
func (s Subject) Display() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Code)
}

// Enrollment is a student's durable membership in a subject,
// unique on (student, subject).
type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	SubjectID  string    `json:"subject_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Session is one occurrence of a subject's class. At most one session
// per subject has IsActive set at any time.
type Session struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	Date         time.Time `json:"session_date"`
	TimeOfDay    string    `json:"session_time"` // HH:MM:SS
	IsActive     bool      `json:"is_active"`
	AttendanceQR string    `json:"attendance_qr"`
	CreatedAt    time.Time `json:"created_at"`
}

// StartsAt reconstructs the session start instant from the stored date and
// time-of-day. The late threshold is measured from this instant, not from the
// row's creation timestamp.
func (s Session) StartsAt() (time.Time, error) {
	tod, err := time.Parse("15:04:05", s.TimeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %s: bad time of day %q: %w", s.ID, s.TimeOfDay, err)
	}
	d := s.Date
	return time.Date(d.Year(), d.Month(), d.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, d.Location()), nil
}

// RecordStatus is the attendance outcome for one student in one session.
type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusPresent RecordStatus = "present"
	StatusLate    RecordStatus = "late"
	StatusAbsent  RecordStatus = "absent"
)

// Valid reports whether the status is a supported value.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// Terminal reports whether the status is a final outcome. A terminal record
// is never overwritten by a scan, only by an explicit teacher override.
func (s RecordStatus) Terminal() bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// Record is a student's attendance for one session, unique on
// (session, student).
type Record struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	StudentID    string       `json:"student_id"`
	Status       RecordStatus `json:"status"`
	CheckInTime  *time.Time   `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time   `json:"check_out_time,omitempty"`
	IsLate       bool         `json:"is_late"`
}

// CodeType is the direction a manual code stands in for.
type CodeType string

const (
	CodeIn  CodeType = "in"
	CodeOut CodeType = "out"
)

// Valid reports whether the code type is supported.
func (t CodeType) Valid() bool { return t == CodeIn || t == CodeOut }

// ManualCode is a one-time token substituting for a QR scan, bound to one
// session and direction.
type ManualCode struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      CodeType  `json:"type"`
	Code      string    `json:"code"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
