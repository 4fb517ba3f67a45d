package database

import "fmt"

// StorageError wraps a fault raised by the storage engine: constraint
// violations, connection loss, failed commits. Retrying is safe because
// every write is an idempotent upsert.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// AmbiguousKeyError reports more than one stored row for a natural key.
// It indicates an earlier integrity violation and is never resolved by
// picking one of the rows.
type AmbiguousKeyError struct {
	Entity string
	Key    string
	// Count is the number of matching rows seen. Lookups stop at two.
	Count int
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("ambiguous %s key %s: at least %d rows match", e.Entity, e.Key, e.Count)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
