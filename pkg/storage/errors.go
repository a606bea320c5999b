package storage

import "errors"

var (
	// ErrContainerNotFound is returned when an operation references a
	// container id the StorageManager has no record of.
	ErrContainerNotFound = errors.New("storage: container not found")

	// ErrContainerExists is returned by CreateContainer when the id is
	// already registered.
	ErrContainerExists = errors.New("storage: container already exists")

	// ErrValueTooLarge is the panic value InsertValue raises when a value
	// is bigger than PageSize and therefore can never fit on any page.
	ErrValueTooLarge = errors.New("storage: value larger than page size")

	// ErrValueNotFound is returned by GetValue when the ValueID does not
	// resolve to a live record.
	ErrValueNotFound = errors.New("storage: value not found")
)
