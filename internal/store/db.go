package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open creates a Postgres connection with sane defaults and runs migrations.
func Open(connString string) (*Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT 'student',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id                      TEXT PRIMARY KEY,
		name                    TEXT NOT NULL,
		code                    TEXT UNIQUE NOT NULL,
		teacher_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		schedule_days           TEXT NOT NULL DEFAULT '',
		start_time              TEXT NOT NULL DEFAULT '',
		end_time                TEXT NOT NULL DEFAULT '',
		late_threshold_minutes  INT NOT NULL DEFAULT 15,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		subject_id  TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, subject_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_sessions (
		id            TEXT PRIMARY KEY,
		subject_id    TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		session_date  DATE NOT NULL,
		session_time  TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		attendance_qr TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_subject_active
		ON attendance_sessions(subject_id) WHERE is_active;

	CREATE TABLE IF NOT EXISTS attendance_records (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES attendance_sessions(id) ON DELETE CASCADE,
		student_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status         TEXT NOT NULL DEFAULT 'pending',
		check_in_time  TIMESTAMPTZ,
		check_out_time TIMESTAMPTZ,
		is_late        BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS manual_codes (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES attendance_sessions(id) ON DELETE CASCADE,
		type        TEXT NOT NULL,
		code        TEXT NOT NULL,
		used        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_manual_codes_code ON manual_codes(code) WHERE NOT used;
	`
	_, err := db.Exec(schema)
	return err
}
