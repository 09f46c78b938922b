package repository

import "errors"

// ErrStatusConflict is returned when a conditional status update matched no
// row: the request was decided by someone else (or deleted) between read and
// write. Callers report it as a conflict, never as a permission failure.
var ErrStatusConflict = errors.New("request status conflict")
