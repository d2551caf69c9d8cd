package scan

import (
	"strings"
	"time"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/model"
)

// Payload prefixes. The colon forms carry a "Name (CODE)" parenthetical;
// the underscore forms are fully underscore-delimited and the attendance
// variants append the session date as a trailing token.
const (
	prefixSubjectColon  = "SUBJECT:"
	prefixSubjectUnder  = "SUBJECT_"
	prefixCheckInColon  = "ATTENDANCE:"
	prefixCheckOutColon = "ATTENDANCE-OUT:"
	prefixCheckInUnder  = "ATTENDANCE_IN_"
	prefixCheckOutUnder = "ATTENDANCE_OUT_"
)

// Parse interprets a scanned or manually typed payload. Unknown shapes come
// back as InvalidIntent with a nil error; a recognized prefix whose remainder
// cannot be decomposed into name+code (+date for the underscore attendance
// forms) yields a format error.
func Parse(payload string) (Intent, error) {
	p := strings.TrimSpace(payload)

	switch {
	case strings.HasPrefix(p, prefixCheckOutColon):
		name, code, err := parseParen(p[len(prefixCheckOutColon):])
		if err != nil {
			return nil, err
		}
		return CheckOutIntent{SubjectName: name, SubjectCode: code}, nil

	case strings.HasPrefix(p, prefixCheckInColon):
		name, code, err := parseParen(p[len(prefixCheckInColon):])
		if err != nil {
			return nil, err
		}
		return CheckInIntent{SubjectName: name, SubjectCode: code}, nil

	case strings.HasPrefix(p, prefixSubjectColon):
		name, code, err := parseParen(p[len(prefixSubjectColon):])
		if err != nil {
			return nil, err
		}
		return EnrollIntent{SubjectName: name, SubjectCode: code}, nil

	case strings.HasPrefix(p, prefixCheckOutUnder):
		name, code, err := parseUnderscore(p[len(prefixCheckOutUnder):], 2)
		if err != nil {
			return nil, err
		}
		return CheckOutIntent{SubjectName: name, SubjectCode: code}, nil

	case strings.HasPrefix(p, prefixCheckInUnder):
		name, code, err := parseUnderscore(p[len(prefixCheckInUnder):], 2)
		if err != nil {
			return nil, err
		}
		return CheckInIntent{SubjectName: name, SubjectCode: code}, nil

	case strings.HasPrefix(p, prefixSubjectUnder):
		name, code, err := parseUnderscore(p[len(prefixSubjectUnder):], 1)
		if err != nil {
			return nil, err
		}
		return EnrollIntent{SubjectName: name, SubjectCode: code}, nil
	}

	return InvalidIntent{Payload: p}, nil
}

// parseParen decomposes the "Name (CODE)" form.
func parseParen(rest string) (name, code string, err error) {
	rest = strings.TrimSpace(rest)
	open := strings.LastIndex(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return "", "", apperr.Format(apperr.ReasonBadPayload, "expected \"Name (CODE)\"")
	}
	name = strings.TrimSpace(rest[:open])
	code = strings.TrimSpace(rest[open+1 : len(rest)-1])
	if name == "" || code == "" {
		return "", "", apperr.Format(apperr.ReasonBadPayload, "empty subject name or code")
	}
	return name, code, nil
}

// parseUnderscore decomposes the underscore-delimited form. The subject name
// may itself contain underscores, so the trailing tokens (code, or code+date)
// are peeled off the end and the rest is rejoined as the name.
func parseUnderscore(rest string, trailing int) (name, code string, err error) {
	parts := strings.Split(rest, "_")
	if len(parts) < trailing+1 {
		return "", "", apperr.Format(apperr.ReasonBadPayload, "too few underscore-delimited tokens")
	}
	name = strings.TrimSpace(strings.Join(parts[:len(parts)-trailing], "_"))
	code = strings.TrimSpace(parts[len(parts)-trailing])
	if name == "" || code == "" {
		return "", "", apperr.Format(apperr.ReasonBadPayload, "empty subject name or code")
	}
	return name, code, nil
}

// EnrollPayload renders the enrollment QR payload for a subject.
func EnrollPayload(sub model.Subject) string {
	return prefixSubjectColon + sub.Display()
}

// CheckInPayload renders the check-in QR payload for a session of a subject.
func CheckInPayload(sub model.Subject, date time.Time) string {
	return prefixCheckInUnder + sub.Name + "_" + sub.Code + "_" + date.Format("2006-01-02")
}

// CheckOutPayload renders the check-out QR payload.
func CheckOutPayload(sub model.Subject, date time.Time) string {
	return prefixCheckOutUnder + sub.Name + "_" + sub.Code + "_" + date.Format("2006-01-02")
}
