package repository

import "errors"

// ErrNotFound is returned by every store when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when inserting a record whose id is taken.
var ErrAlreadyExists = errors.New("already exists")
