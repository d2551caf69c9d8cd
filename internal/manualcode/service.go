// Package manualcode issues and redeems one-time codes standing in for QR
// scans, for students without a working scanner.
package manualcode

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// Ambiguous characters (0/O, 1/I) are left out; codes get read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Store is the persistence surface the service needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	InsertManualCode(ctx context.Context, mc *model.ManualCode) error
	ConsumeManualCode(ctx context.Context, code string) (*model.ManualCode, error)
	ClearManualCodes(ctx context.Context, sessionID string) error
	CountEnrolled(ctx context.Context, subjectID string) (int, error)
	CountPendingRecords(ctx context.Context, sessionID string) (int, error)
}

// Recorder is the downstream a redeemed code dispatches into.
type Recorder interface {
	CheckIn(ctx context.Context, sessionID, studentID string) (*model.Record, error)
	CheckOut(ctx context.Context, sessionID, studentID string) (*model.Record, error)
}

// Service issues and redeems manual codes.
type Service struct {
	store    Store
	recorder Recorder
	codeLen  int
}

// NewService creates the manual-code service. codeLen below 4 is raised to 4.
func NewService(st Store, rec Recorder, codeLen int) *Service {
	if codeLen < 4 {
		codeLen = 4
	}
	return &Service{store: st, recorder: rec, codeLen: codeLen}
}

// Issue generates one unused code bound to the session and direction.
func (s *Service) Issue(ctx context.Context, sessionID string, typ model.CodeType) (*model.ManualCode, error) {
	if !typ.Valid() {
		return nil, apperr.Format(apperr.ReasonBadPayload, "code type must be in or out")
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound(apperr.ReasonSession, "session not found")
	}
	code, err := randomCode(s.codeLen)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	mc := &model.ManualCode{SessionID: sessionID, Type: typ, Code: code}
	if err := s.store.InsertManualCode(ctx, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

// IssueBatch issues one code per student who could still use one: the whole
// roster for in-codes, the students with a pending record for out-codes.
func (s *Service) IssueBatch(ctx context.Context, sessionID string, typ model.CodeType) ([]model.ManualCode, error) {
	if !typ.Valid() {
		return nil, apperr.Format(apperr.ReasonBadPayload, "code type must be in or out")
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound(apperr.ReasonSession, "session not found")
	}

	var n int
	if typ == model.CodeIn {
		n, err = s.store.CountEnrolled(ctx, sess.SubjectID)
	} else {
		n, err = s.store.CountPendingRecords(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	codes := make([]model.ManualCode, 0, n)
	for i := 0; i < n; i++ {
		code, err := randomCode(s.codeLen)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		mc := &model.ManualCode{SessionID: sessionID, Type: typ, Code: code}
		if err := s.store.InsertManualCode(ctx, mc); err != nil {
			return nil, err
		}
		codes = append(codes, *mc)
	}
	return codes, nil
}

// Redeem consumes an unused code and dispatches to check-in or check-out on
// its bound session. The consuming update is the atomic eligibility check, so
// two simultaneous redemptions cannot both pass. The code stays consumed even
// when the downstream call reports a conflict: a handed-out code is spent
// either way, which keeps retry storms from burning through state.
func (s *Service) Redeem(ctx context.Context, code, studentID string) (*model.Record, error) {
	mc, err := s.store.ConsumeManualCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if mc == nil {
		return nil, apperr.NotFound(apperr.ReasonInvalidOrUsedCode, "invalid or already used code")
	}
	if mc.Type == model.CodeOut {
		return s.recorder.CheckOut(ctx, mc.SessionID, studentID)
	}
	return s.recorder.CheckIn(ctx, mc.SessionID, studentID)
}

// Clear invalidates every code for a session. Session stop also purges codes
// inside its own transaction; this is the standalone path.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.ClearManualCodes(ctx, sessionID)
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
