package database

import (
	"database/sql/driver"
	"errors"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

// IsConnectionError reports failures a later attempt may not hit: a dropped
// connection, or a database that is busy, locked or not yet openable.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return true
		}
	}
	return false
}

// FromDatabase converts a database error to an AppError. Connection
// problems are retryable; anything else is reported against ref.
func FromDatabase(err error, ref string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("row", ref)
	}
	if IsConnectionError(err) {
		return apperrors.ExternalServiceError("database", err)
	}
	return apperrors.Resource(ref, err)
}
