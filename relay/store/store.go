// Package store persists relay users and the notification correlation log.
package store

import "fmt"

// StorageError wraps a database failure with the operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Code identifies storage failures for handler summary logs.
func (e *StorageError) Code() string { return "STORAGE_ERROR" }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
