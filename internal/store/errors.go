package store

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jerryfel13/attendance-monitoring-dy-sub000/internal/apperr"
)

// ErrDuplicate reports a unique-constraint collision. Services translate it
// into the conflict outcome appropriate to their operation.
var ErrDuplicate = errors.New("duplicate row")

// classify maps driver-level failures onto the error taxonomy. Unique
// violations become ErrDuplicate, connectivity failures become transient
// (safe to retry), everything else passes through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return ErrDuplicate
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return apperr.Transient(err)
		case pgErr.Code == "53300" || pgErr.Code == "57P01": // too many conns / admin shutdown
			return apperr.Transient(err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(err)
	}
	return err
}
