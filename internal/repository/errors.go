package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrAlreadyPaid is returned when a write would reset the payment of a
	// request that is already completed.
	ErrAlreadyPaid = errors.New("service request already paid")
)
