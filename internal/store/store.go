package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// Store persists all entities in Postgres. It is the single place SQL lives;
// services depend on narrow interfaces satisfied by it.
type Store struct {
	db *sql.DB
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// -------- Users --------

// UpsertUser ensures an identity row exists for foreign keys to land on.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
			role = EXCLUDED.role
	`, u.ID, u.Name, string(u.Role))
	return classify(err)
}

// -------- Subjects --------

const subjectCols = `id, name, code, teacher_id, schedule_days, start_time, end_time, late_threshold_minutes, created_at`

func scanSubject(row interface{ Scan(...any) error }) (*model.Subject, error) {
	var sub model.Subject
	var days string
	if err := row.Scan(&sub.ID, &sub.Name, &sub.Code, &sub.TeacherID, &days,
		&sub.StartTime, &sub.EndTime, &sub.LateThresholdMinutes, &sub.CreatedAt); err != nil {
		return nil, err
	}
	if days != "" {
		sub.ScheduleDays = strings.Split(days, ",")
	}
	return &sub, nil
}

// CreateSubject inserts a subject. Returns ErrDuplicate when the code is taken.
func (s *Store) CreateSubject(ctx context.Context, sub *model.Subject) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, name, code, teacher_id, schedule_days, start_time, end_time, late_threshold_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, sub.ID, sub.Name, sub.Code, sub.TeacherID, strings.Join(sub.ScheduleDays, ","),
		sub.StartTime, sub.EndTime, sub.LateThresholdMinutes)
	if err := row.Scan(&sub.CreatedAt); err != nil {
		return classify(err)
	}
	return nil
}

// GetSubject returns a subject by id, nil when absent.
func (s *Store) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subjectCols+` FROM subjects WHERE id = $1`, id)
	sub, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, classify(err)
}

// GetSubjectByNameCode resolves a subject by its trimmed name+code pair, the
// identifier QR payloads carry. Returns nil when no subject matches.
func (s *Store) GetSubjectByNameCode(ctx context.Context, name, code string) (*model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subjectCols+` FROM subjects
		WHERE TRIM(name) = $1 AND TRIM(code) = $2
	`, strings.TrimSpace(name), strings.TrimSpace(code))
	sub, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, classify(err)
}

// ListSubjectsByTeacher returns the subjects a teacher owns.
func (s *Store) ListSubjectsByTeacher(ctx context.Context, teacherID string) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subjectCols+` FROM subjects WHERE teacher_id = $1 ORDER BY name
	`, teacherID)
	return collectSubjects(rows, err)
}

// ListSubjectsByStudent returns the subjects a student is enrolled in.
func (s *Store) ListSubjectsByStudent(ctx context.Context, studentID string) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.code, s.teacher_id, s.schedule_days, s.start_time, s.end_time, s.late_threshold_minutes, s.created_at
		FROM subjects s
		JOIN enrollments e ON e.subject_id = s.id
		WHERE e.student_id = $1
		ORDER BY s.name
	`, studentID)
	return collectSubjects(rows, err)
}

func collectSubjects(rows *sql.Rows, err error) ([]model.Subject, error) {
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var subs []model.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, classify(err)
		}
		subs = append(subs, *sub)
	}
	return subs, classify(rows.Err())
}

// DeleteSubject removes a subject; sessions, enrollments and records cascade.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	return classify(err)
}

// -------- Enrollments --------

// GetEnrollment returns the enrollment for (student, subject), nil when absent.
func (s *Store) GetEnrollment(ctx context.Context, studentID, subjectID string) (*model.Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, enrolled_at
		FROM enrollments WHERE student_id = $1 AND subject_id = $2
	`, studentID, subjectID)
	var e model.Enrollment
	if err := row.Scan(&e.ID, &e.StudentID, &e.SubjectID, &e.EnrolledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &e, nil
}

// InsertEnrollment writes an enrollment row. The unique (student, subject)
// constraint is the real duplicate guard; collisions come back as ErrDuplicate.
func (s *Store) InsertEnrollment(ctx context.Context, e *model.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (id, student_id, subject_id)
		VALUES ($1, $2, $3)
		RETURNING enrolled_at
	`, e.ID, e.StudentID, e.SubjectID)
	if err := row.Scan(&e.EnrolledAt); err != nil {
		return classify(err)
	}
	return nil
}

// DeleteEnrollment removes a student from a subject roster.
func (s *Store) DeleteEnrollment(ctx context.Context, studentID, subjectID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM enrollments WHERE student_id = $1 AND subject_id = $2
	`, studentID, subjectID)
	return classify(err)
}

// CountEnrolled returns the roster size of a subject.
func (s *Store) CountEnrolled(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE subject_id = $1`, subjectID).Scan(&n)
	return n, classify(err)
}

// -------- Sessions --------

const sessionCols = `id, subject_id, session_date, session_time, is_active, attendance_qr, created_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	if err := row.Scan(&sess.ID, &sess.SubjectID, &sess.Date, &sess.TimeOfDay,
		&sess.IsActive, &sess.AttendanceQR, &sess.CreatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// StartSession deactivates any active session for the subject and inserts the
// new one in a single transaction, preserving the at-most-one-active invariant
// across crashes.
func (s *Store) StartSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions SET is_active = FALSE
		WHERE subject_id = $1 AND is_active
	`, sess.SubjectID); err != nil {
		return classify(err)
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, subject_id, session_date, session_time, is_active, attendance_qr)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING created_at
	`, sess.ID, sess.SubjectID, sess.Date, sess.TimeOfDay, sess.AttendanceQR)
	if err := row.Scan(&sess.CreatedAt); err != nil {
		return classify(err)
	}
	sess.IsActive = true
	return classify(tx.Commit())
}

// GetSession returns a session by id, nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM attendance_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, classify(err)
}

// ActiveSession returns the most recent active session for a subject, nil
// when the subject has none.
func (s *Store) ActiveSession(ctx context.Context, subjectID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionCols+` FROM attendance_sessions
		WHERE subject_id = $1 AND is_active
		ORDER BY session_date DESC, session_time DESC
		LIMIT 1
	`, subjectID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, classify(err)
}

// RecordFinalization carries a classified outcome for one pending record.
type RecordFinalization struct {
	RecordID string
	Status   model.RecordStatus
	IsLate   bool
}

// FinalizeCounts summarizes what FinalizeSession touched.
type FinalizeCounts struct {
	Enrolled    int
	NewlyAbsent int
}

// FinalizeSession applies the end-of-session writes in one transaction:
// a single batched update finalizing the classified pending records, a single
// insert-select backfilling absent records for enrolled students with no
// record, session deactivation, and the manual-code purge.
func (s *Store) FinalizeSession(ctx context.Context, sessionID, subjectID string, fins []RecordFinalization, checkOut time.Time) (FinalizeCounts, error) {
	var counts FinalizeCounts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, classify(err)
	}
	defer tx.Rollback()

	if len(fins) > 0 {
		ids := make([]string, len(fins))
		statuses := make([]string, len(fins))
		lates := make([]bool, len(fins))
		for i, f := range fins {
			ids[i] = f.RecordID
			statuses[i] = string(f.Status)
			lates[i] = f.IsLate
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE attendance_records r
			SET status = f.status, is_late = f.is_late, check_out_time = $4
			FROM unnest($1::text[], $2::text[], $3::boolean[]) AS f(id, status, is_late)
			WHERE r.id = f.id AND r.status = 'pending'
		`, ids, statuses, lates, checkOut); err != nil {
			return counts, classify(err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, is_late)
		SELECT gen_random_uuid()::text, $1, e.student_id, 'absent', FALSE
		FROM enrollments e
		WHERE e.subject_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_records r
			WHERE r.session_id = $1 AND r.student_id = e.student_id
		  )
	`, sessionID, subjectID)
	if err != nil {
		return counts, classify(err)
	}
	if n, err := res.RowsAffected(); err == nil {
		counts.NewlyAbsent = int(n)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions SET is_active = FALSE WHERE id = $1
	`, sessionID); err != nil {
		return counts, classify(err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM manual_codes WHERE session_id = $1
	`, sessionID); err != nil {
		return counts, classify(err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE subject_id = $1`, subjectID,
	).Scan(&counts.Enrolled); err != nil {
		return counts, classify(err)
	}

	return counts, classify(tx.Commit())
}

// -------- Records --------

const recordCols = `id, session_id, student_id, status, check_in_time, check_out_time, is_late`

func scanRecord(row interface{ Scan(...any) error }) (*model.Record, error) {
	var rec model.Record
	var status string
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &status,
		&rec.CheckInTime, &rec.CheckOutTime, &rec.IsLate); err != nil {
		return nil, err
	}
	rec.Status = model.RecordStatus(status)
	return &rec, nil
}

// GetRecord returns the record for (session, student), nil when absent.
func (s *Store) GetRecord(ctx context.Context, sessionID, studentID string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, classify(err)
}

// InsertPendingRecord opens a pending record. The unique (session, student)
// constraint collapses a concurrent double check-in to one row; the loser
// gets ErrDuplicate.
func (s *Store) InsertPendingRecord(ctx context.Context, rec *model.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, check_in_time, is_late)
		VALUES ($1, $2, $3, 'pending', $4, $5)
	`, rec.ID, rec.SessionID, rec.StudentID, rec.CheckInTime, rec.IsLate)
	return classify(err)
}

// FinalizeRecord moves a pending record to its terminal status. The
// conditional update makes concurrent check-outs race safely: exactly one
// wins, the other sees no rows touched.
func (s *Store) FinalizeRecord(ctx context.Context, recordID string, status model.RecordStatus, isLate bool, checkOut time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $2, is_late = $3, check_out_time = $4
		WHERE id = $1 AND status = 'pending'
	`, recordID, string(status), isLate, checkOut)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// OverrideRecord unconditionally sets a status for (session, student),
// creating the record when the student never scanned.
func (s *Store) OverrideRecord(ctx context.Context, sessionID, studentID string, status model.RecordStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, is_late)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			status = EXCLUDED.status, is_late = EXCLUDED.is_late
	`, uuid.NewString(), sessionID, studentID, string(status), status == model.StatusLate)
	return classify(err)
}

// ListRecords returns every record in a session.
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE session_id = $1 ORDER BY student_id
	`, sessionID)
	return collectRecords(rows, err)
}

// ListPendingRecords returns the records still awaiting check-out.
func (s *Store) ListPendingRecords(ctx context.Context, sessionID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE session_id = $1 AND status = 'pending'
	`, sessionID)
	return collectRecords(rows, err)
}

func collectRecords(rows *sql.Rows, err error) ([]model.Record, error) {
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var recs []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, classify(err)
		}
		recs = append(recs, *rec)
	}
	return recs, classify(rows.Err())
}

// CountRecordsByStatus tallies a session's records per status.
func (s *Store) CountRecordsByStatus(ctx context.Context, sessionID string) (map[model.RecordStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM attendance_records
		WHERE session_id = $1 GROUP BY status
	`, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[model.RecordStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify(err)
		}
		out[model.RecordStatus(status)] = n
	}
	return out, classify(rows.Err())
}

// CountPendingRecords returns how many records in a session await check-out.
func (s *Store) CountPendingRecords(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE session_id = $1 AND status = 'pending'
	`, sessionID).Scan(&n)
	return n, classify(err)
}

// -------- Manual codes --------

// InsertManualCode stores an unused code bound to a session and direction.
func (s *Store) InsertManualCode(ctx context.Context, mc *model.ManualCode) error {
	if mc.ID == "" {
		mc.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO manual_codes (id, session_id, type, code)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, mc.ID, mc.SessionID, string(mc.Type), mc.Code)
	if err := row.Scan(&mc.CreatedAt); err != nil {
		return classify(err)
	}
	return nil
}

// ConsumeManualCode atomically flips an unused code to used and returns it.
// Two simultaneous redemptions cannot both succeed: the conditional update is
// the eligibility check. Returns nil when the code is unknown or spent.
func (s *Store) ConsumeManualCode(ctx context.Context, code string) (*model.ManualCode, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE manual_codes SET used = TRUE
		WHERE code = $1 AND NOT used
		RETURNING id, session_id, type, code, used, created_at
	`, code)
	var mc model.ManualCode
	var typ string
	if err := row.Scan(&mc.ID, &mc.SessionID, &typ, &mc.Code, &mc.Used, &mc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	mc.Type = model.CodeType(typ)
	return &mc, nil
}

// ClearManualCodes drops every code for a session.
func (s *Store) ClearManualCodes(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM manual_codes WHERE session_id = $1`, sessionID)
	return classify(err)
}
