// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
// This occurs when the database is locked by another connection.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError checks if the error is either a SQLITE_BUSY
// or "database is locked" error. Both warrant a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// IsIndexBuildingError reports whether a document store query failed because
// a composite index it needs does not exist yet or is still being built.
// Firestore reports this as FAILED_PRECONDITION with a "requires an index" message.
func IsIndexBuildingError(err error) bool {
	if err == nil {
		return false
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.FailedPrecondition {
		return true
	}
	return strings.Contains(err.Error(), "requires an index")
}

// IsNotFoundError reports whether a document store call failed with NOT_FOUND.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return status.Code(err) == codes.NotFound
}
