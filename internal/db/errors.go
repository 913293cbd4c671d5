package db

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// ClassifyError tells transient storage failures apart from permanent ones, so
// callers can decide whether re-running the whole operation makes sense.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure:
			return ErrorClassSerialization
		case pgerrcode.DeadlockDetected:
			return ErrorClassDeadlock
		case pgerrcode.LockNotAvailable,
			pgerrcode.ConnectionException,
			pgerrcode.ConnectionFailure,
			pgerrcode.AdminShutdown,
			pgerrcode.CannotConnectNow:
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the whole operation may safely be re-submitted.
// The transaction boundary guarantees a failed attempt left no partial state.
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}
