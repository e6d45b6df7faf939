package domain

import "errors"

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the caller does not own the document.
	ErrAccessDenied = errors.New("access denied")
)

// Owned is implemented by documents that belong to exactly one user.
type Owned interface {
	OwnerID() string
}

// CheckOwner returns ErrAccessDenied unless actorID owns the resource.
func CheckOwner(resource Owned, actorID string) error {
	if actorID == "" || resource.OwnerID() != actorID {
		return ErrAccessDenied
	}
	return nil
}
