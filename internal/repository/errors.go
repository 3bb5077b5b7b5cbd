package repository

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrNotInProgress = errors.New("attempt is not in progress")
)
